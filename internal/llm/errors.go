package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/labcert-validator/internal/common"
)

// ClassificationError means the classifier answered but the answer did not
// satisfy the contract. Detection treats it as a per-image failure.
type ClassificationError struct {
	Provider string
	Reason   string
	Raw      []byte
	Err      error
}

func (e *ClassificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s classification invalid: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s classification invalid: %s", e.Provider, e.Reason)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

// IsClassificationError reports whether err carries a malformed classifier answer.
func IsClassificationError(err error) bool {
	var ce *ClassificationError
	return errors.As(err, &ce)
}

// WrapSDKError classifies errors returned by the Google client libraries,
// which surface either REST (*googleapi.Error) or gRPC statuses.
func WrapSDKError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return fmt.Errorf("%w: %w", &common.StatusError{Provider: provider, Status: gerr.Code, Body: gerr.Message}, err)
	}
	st, ok := status.FromError(err)
	if !ok {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%s: %w: %w", provider, common.ErrTransient, err)
	}
	msg := strings.ToLower(st.Message())
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%s: %w: %w", provider, common.ErrPermanent, err)
	case codes.ResourceExhausted:
		if strings.Contains(msg, "insufficient_quota") || strings.Contains(msg, "billing") {
			return fmt.Errorf("%s: %w: %w", provider, common.ErrPermanent, err)
		}
		return fmt.Errorf("%s: %w: %w", provider, common.ErrTransient, err)
	case codes.Unavailable, codes.DeadlineExceeded, codes.Internal, codes.Aborted, codes.Unknown:
		return fmt.Errorf("%s: %w: %w", provider, common.ErrTransient, err)
	}
	return fmt.Errorf("%s: %w", provider, err)
}
