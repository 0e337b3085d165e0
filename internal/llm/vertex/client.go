// Package vertex implements the vision classifier and entity extractor on
// Gemini models served by Vertex AI.
package vertex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/labcert-validator/internal/common"
	"github.com/joseph-ayodele/labcert-validator/internal/llm"
)

type Config struct {
	ProjectID   string
	Region      string
	Model       string
	Temperature float32
	MaxTokens   int32
}

// Client holds one Vertex AI connection. Close it when done.
type Client struct {
	cfg    Config
	base   *genai.Client
	logger *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.ProjectID == "" || cfg.Region == "" {
		return nil, common.NewAppError(common.CodeConfig, "vertex: projectID and region cannot be empty", common.ErrInvalidInput)
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}
	base, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &Client{cfg: cfg, base: base, logger: logger}, nil
}

func (c *Client) Close() error {
	if c.base != nil {
		return c.base.Close()
	}
	return nil
}

func (c *Client) Name() string { return "vertex:" + c.cfg.Model }

// model configures a JSON-mode model. Safety filters are relaxed because lab
// reports routinely mention hazardous substances.
func (c *Client) model(system string) *genai.GenerativeModel {
	m := c.base.GenerativeModel(c.cfg.Model)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	m.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](c.cfg.Temperature),
		MaxOutputTokens:  genai.Ptr[int32](c.cfg.MaxTokens),
	}
	m.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}
	return m
}

// ClassifyImage implements llm.ImageClassifier.
func (c *Client) ClassifyImage(ctx context.Context, req llm.ClassifyRequest) (llm.Classification, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()
	c.logger.Info("llm.classify.start", "req_id", rid, "model", c.cfg.Model, "page", req.PageNumber, "source", req.Source)

	mime := req.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	resp, err := c.model(llm.ClassifierSystemPrompt()).GenerateContent(ctx,
		genai.Blob{MIMEType: mime, Data: req.Image},
		genai.Text(llm.ClassifierUserPrompt()),
	)
	if err != nil {
		err = llm.WrapSDKError(c.Name(), err)
		c.logger.Error("llm.classify.failed", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return llm.Classification{}, nil, err
	}
	txt := responseText(resp)
	if txt == "" {
		return llm.Classification{}, nil, &llm.ClassificationError{Provider: c.Name(), Reason: "empty response"}
	}
	out, raw, err := llm.DecodeClassification(c.Name(), []byte(txt), c.logger)
	if err != nil {
		c.logger.Error("llm.classify.invalid", "req_id", rid, "error", err)
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
	resp, err := c.model(llm.EntitySystemPrompt()).GenerateContent(ctx, genai.Text(llm.EntityUserPrompt(req)))
	if err != nil {
		return llm.EntityFields{}, nil, llm.WrapSDKError(c.Name(), err)
	}
	out, raw, err := llm.DecodeEntities([]byte(responseText(resp)), c.logger)
	if err != nil {
		c.logger.Error("llm.extract.schema_validation_failed", "req_id", rid, "error", err)
		return llm.EntityFields{}, raw, errors.Join(common.ErrTransient, err)
	}
	c.logger.Info("llm.extract.ok", "req_id", rid, "our_ref", out.OurRef, "elapsed_ms", time.Since(start).Milliseconds())
	return out, raw, nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}
