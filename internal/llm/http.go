package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/googleapis/gax-go/v2"
	"github.com/joseph-ayodele/labcert-validator/internal/common"
)

// Call is one JSON POST to a model endpoint.
type Call struct {
	Provider string
	URL      string
	Headers  map[string]string
	Body     any
	// Attempts caps tries for transient failures. Zero means one try.
	Attempts int
	// Backoff between tries; the zero value uses gax defaults.
	Backoff gax.Backoff
}

// SendJSON posts call.Body and returns the 2xx response body. A non-2xx
// answer is a *common.StatusError tagged with call.Provider. Transport errors,
// rate limits and 5xx are retried until Attempts runs out or ctx ends.
func SendJSON(ctx context.Context, client *http.Client, call Call, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 45 * time.Second}
	}
	reqID := common.RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = uuid.New().String()
	}

	payload, err := json.Marshal(call.Body)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", call.Provider, err)
	}

	attempts := max(call.Attempts, 1)
	var lastErr error
	for try := 1; try <= attempts; try++ {
		raw, err := post(ctx, client, call, payload)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !common.IsTransient(err) || ctx.Err() != nil || try == attempts {
			break
		}
		pause := call.Backoff.Pause()
		logger.Warn("llm.http.retry",
			"req_id", reqID,
			"provider", call.Provider,
			"attempt", try,
			"pause_ms", pause.Milliseconds(),
			"err", err)
		if serr := gax.Sleep(ctx, pause); serr != nil {
			return nil, fmt.Errorf("%s: %w", call.Provider, serr)
		}
	}
	logger.Error("llm.http.failed", "req_id", reqID, "provider", call.Provider, "err", lastErr)
	return nil, lastErr
}

func post(ctx context.Context, client *http.Client, call Call, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, call.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", call.Provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range call.Headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, fmt.Errorf("%s: %w", call.Provider, cerr)
		}
		return nil, fmt.Errorf("%s send: %w: %w", call.Provider, common.ErrTransient, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s read: %w: %w", call.Provider, common.ErrTransient, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, &common.StatusError{Provider: call.Provider, Status: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}
