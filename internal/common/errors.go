package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")

	// ErrTransient marks collaborator failures that may succeed on retry
	// (timeouts, rate limits, 5xx). Pipelines degrade on these.
	ErrTransient = errors.New("transient collaborator failure")
	// ErrPermanent marks collaborator failures that will not succeed on retry
	// (bad credentials, exhausted quota). They are fatal for a document.
	ErrPermanent = errors.New("permanent collaborator failure")
)

// Error codes carried by AppError.
const (
	CodeInvalidInput = "INVALID_INPUT"
	CodeConfig       = "CONFIG_ERROR"
	CodeCollaborator = "COLLABORATOR_ERROR"
	CodeStorage      = "STORAGE_ERROR"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// InvalidInputf builds an INVALID_INPUT error wrapping ErrInvalidInput.
func InvalidInputf(format string, args ...any) error {
	return NewAppError(CodeInvalidInput, fmt.Sprintf(format, args...), ErrInvalidInput)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsPermanent reports whether err is a permanent collaborator failure.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

// IsTransient reports whether err may succeed on retry. Context deadline
// errors count as transient.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded)
}

// StatusError is a non-2xx response from a model endpoint. It unwraps to
// ErrPermanent or ErrTransient depending on the status.
type StatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("%s status %d: %s", e.Provider, e.Status, strings.TrimSpace(body))
}

func (e *StatusError) Unwrap() error {
	return ClassifyStatus(e.Status, e.Body)
}

// ClassifyStatus maps an HTTP status (and body, for quota errors) onto the
// collaborator error taxonomy. It returns nil for statuses that are neither.
func ClassifyStatus(status int, body string) error {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrPermanent
	case status == http.StatusTooManyRequests && strings.Contains(body, "insufficient_quota"):
		return ErrPermanent
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout, status >= 500:
		return ErrTransient
	}
	return nil
}
