// Package gemini implements the vision classifier and entity extractor on the
// Gemini API through github.com/google/generative-ai-go.
package gemini

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/labcert-validator/internal/common"
	"github.com/joseph-ayodele/labcert-validator/internal/llm"
)

type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int32
	Attempts    int
}

type Client struct {
	cfg    Config
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, logger: logger}
}

func (c *Client) Name() string { return "gemini:" + c.cfg.Model }

// ClassifyImage implements llm.ImageClassifier.
func (c *Client) ClassifyImage(ctx context.Context, req llm.ClassifyRequest) (llm.Classification, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()
	c.logger.Info("llm.classify.start", "req_id", rid, "model", c.cfg.Model, "page", req.PageNumber, "source", req.Source)

	txt, err := c.generate(ctx, llm.ClassifierSystemPrompt(),
		genai.Text(llm.ClassifierUserPrompt()),
		&genai.Blob{MIMEType: pickMIME(req.MIMEType), Data: req.Image},
	)
	if err != nil {
		c.logger.Error("llm.classify.failed", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return llm.Classification{}, nil, err
	}
	out, raw, err := llm.DecodeClassification(c.Name(), []byte(txt), c.logger)
	if err != nil {
		c.logger.Error("llm.classify.invalid", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return llm.Classification{}, raw, err
	}
	c.logger.Info("llm.classify.ok", "req_id", rid, "type", out.Type, "confidence", out.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds())
	return out, raw, nil
}

// ExtractEntities implements llm.FieldExtractor.
func (c *Client) ExtractEntities(ctx context.Context, req llm.ExtractRequest) (llm.EntityFields, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()
	c.logger.Info("llm.extract.start", "req_id", rid, "model", c.cfg.Model, "text_len", len(req.Text))

	txt, err := c.generate(ctx, llm.EntitySystemPrompt(), genai.Text(llm.EntityUserPrompt(req)))
	if err != nil {
		return llm.EntityFields{}, nil, err
	}
	out, raw, err := llm.DecodeEntities([]byte(txt), c.logger)
	if err != nil {
		c.logger.Error("llm.extract.schema_validation_failed", "req_id", rid, "error", err)
		return llm.EntityFields{}, raw, errors.Join(common.ErrTransient, err)
	}
	c.logger.Info("llm.extract.ok", "req_id", rid, "our_ref", out.OurRef, "elapsed_ms", time.Since(start).Milliseconds())
	return out, raw, nil
}

// generate runs one JSON-mode request, retrying transient failures.
func (c *Client) generate(ctx context.Context, system string, parts ...genai.Part) (string, error) {
	if c.cfg.APIKey == "" {
		return "", common.NewAppError(common.CodeConfig, "GEMINI_API_KEY is empty", common.ErrPermanent)
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(c.cfg.APIKey))
	if err != nil {
		return "", llm.WrapSDKError(c.Name(), err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(c.cfg.Model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(c.cfg.Temperature),
		MaxOutputTokens:  ptrInt32(c.cfg.MaxTokens),
		ResponseMIMEType: "application/json",
	}
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.Attempts; attempt++ {
		resp, err := m.GenerateContent(ctx, parts...)
		if err != nil {
			lastErr = llm.WrapSDKError(c.Name(), err)
			if !common.IsTransient(lastErr) || ctx.Err() != nil {
				return "", lastErr
			}
			c.logger.Warn("gemini.retry", "attempt", attempt, "error", err)
			time.Sleep(time.Duration(attempt) * 300 * time.Millisecond)
			continue
		}
		txt := firstText(resp)
		if txt == "" {
			return "", &llm.ClassificationError{Provider: c.Name(), Reason: "empty response"}
		}
		return txt, nil
	}
	return "", lastErr
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func pickMIME(m string) string {
	if m == "" {
		return "image/png"
	}
	return m
}

func ptrFloat32(v float32) *float32 { return &v }
func ptrInt32(v int32) *int32 { return &v }
