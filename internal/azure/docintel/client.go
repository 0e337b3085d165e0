package docintel

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/labcert-validator/internal/common"
	"github.com/joseph-ayodele/labcert-validator/internal/entity"
)

const (
	providerName      = "docintel"
	defaultAPIVersion = "2024-11-30"
	layoutModel       = "prebuilt-layout"
)

// Analysis is a completed layout analysis. ResultID addresses its figures.
type Analysis struct {
	ResultID string
	Result   AnalyzeResult
}

// Client talks to the Document Intelligence REST API. Analyses are cached by
// content hash so the text and figure providers share one round trip.
type Client struct {
	cfg    common.DocIntelConfig
	http   *http.Client
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]*Analysis
}

func NewClient(cfg common.DocIntelConfig, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if !cfg.Enabled() {
		return nil, common.NewAppError(common.CodeConfig, "document intelligence endpoint and key are required", common.ErrInvalidInput)
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &Client{cfg: cfg, http: httpClient, logger: logger, cache: map[string]*Analysis{}}, nil
}

// Analyze runs prebuilt-layout with figure output over the document, or
// returns the cached analysis for identical content.
func (c *Client) Analyze(ctx context.Context, doc *entity.Document) (*Analysis, error) {
	key := cacheKey(doc)
	c.mu.Lock()
	if a, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return a, nil
	}
	c.mu.Unlock()

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	analyzeURL := fmt.Sprintf("%s/documentintelligence/documentModels/%s:analyze?api-version=%s&output=figures",
		c.cfg.Endpoint, layoutModel, url.QueryEscape(c.cfg.APIVersion))
	body, err := json.Marshal(map[string]string{"base64Source": base64.StdEncoding.EncodeToString(doc.Data)})
	if err != nil {
		return nil, fmt.Errorf("encode analyze request: %w", err)
	}

	c.logger.Info("docintel.analyze.start", "path", doc.Path, "bytes", len(doc.Data))
	resp, _, err := c.do(ctx, http.MethodPost, analyzeURL, body)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	opURL := resp.Get("Operation-Location")
	if opURL == "" {
		return nil, fmt.Errorf("analyze: response has no Operation-Location header")
	}

	op, err := c.poll(ctx, opURL)
	if err != nil {
		return nil, err
	}
	a := &Analysis{ResultID: resultIDFrom(opURL), Result: op.AnalyzeResult}

	c.mu.Lock()
	c.cache[key] = a
	c.mu.Unlock()

	c.logger.Info("docintel.analyze.ok",
		"path", doc.Path,
		"pages", len(a.Result.Pages),
		"figures", len(a.Result.Figures),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return a, nil
}

func (c *Client) poll(ctx context.Context, opURL string) (*Operation, error) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for attempt := 1; ; attempt++ {
		_, raw, err := c.do(ctx, http.MethodGet, opURL, nil)
		if err != nil {
			return nil, fmt.Errorf("poll analysis: %w", err)
		}
		var op Operation
		if err := json.Unmarshal(raw, &op); err != nil {
			return nil, fmt.Errorf("decode analysis: %w", err)
		}
		c.logger.Debug("docintel.analyze.poll", "attempt", attempt, "status", op.Status)

		switch op.Status {
		case StatusSucceeded:
			return &op, nil
		case StatusFailed, StatusCanceled:
			if op.Error != nil {
				return nil, fmt.Errorf("analysis %s: %s: %s", op.Status, op.Error.Code, op.Error.Message)
			}
			return nil, fmt.Errorf("analysis %s", op.Status)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("poll analysis: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Figure downloads the cropped image of one figure. The service returns PNG.
func (c *Client) Figure(ctx context.Context, resultID, figureID string) ([]byte, string, error) {
	figURL := fmt.Sprintf("%s/documentintelligence/documentModels/%s/analyzeResults/%s/figures/%s?api-version=%s",
		c.cfg.Endpoint, layoutModel, url.PathEscape(resultID), url.PathEscape(figureID), url.QueryEscape(c.cfg.APIVersion))
	hdr, raw, err := c.do(ctx, http.MethodGet, figURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("figure %s: %w", figureID, err)
	}
	mime := hdr.Get("Content-Type")
	if mime == "" || strings.HasPrefix(mime, "application/octet-stream") {
		mime = http.DetectContentType(raw)
	}
	return raw, mime, nil
}

func (c *Client) do(ctx context.Context, method, target string, body []byte) (http.Header, []byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, fmt.Errorf("%w: %w", common.ErrTransient, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Warn("docintel.http.response_body_close_error", "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w: %w", common.ErrTransient, err)
	}
	if resp.StatusCode/100 != 2 {
		return resp.Header, raw, &common.StatusError{Provider: providerName, Status: resp.StatusCode, Body: string(raw)}
	}
	return resp.Header, raw, nil
}

// resultIDFrom pulls the result id out of
// .../analyzeResults/{resultId}?api-version=...
func resultIDFrom(opURL string) string {
	u, err := url.Parse(opURL)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := len(parts) - 2; i >= 0; i-- {
		if parts[i] == "analyzeResults" {
			return parts[i+1]
		}
	}
	return ""
}

func cacheKey(doc *entity.Document) string {
	if len(doc.ContentHash) > 0 {
		return hex.EncodeToString(doc.ContentHash)
	}
	sum := sha256.Sum256(doc.Data)
	return hex.EncodeToString(sum[:])
}

var errNoResultID = errors.New("analysis has no result id")
