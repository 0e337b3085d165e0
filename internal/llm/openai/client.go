package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/googleapis/gax-go/v2"

	"github.com/joseph-ayodele/labcert-validator/internal/common"
	"github.com/joseph-ayodele/labcert-validator/internal/llm"
)

// ClassifyImage implements llm.ImageClassifier with a vision chat/completions call.
func (c *Client) ClassifyImage(ctx context.Context, req llm.ClassifyRequest) (llm.Classification, []byte, error) {
	rid := uuid.New().String()
	ctx = common.WithRequestID(ctx, rid)
	start := time.Now()

	c.logger.Info("llm.classify.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"page", req.PageNumber,
		"source", req.Source,
		"image_bytes", len(req.Image),
	)

	body := map[string]any{
		"temperature":     c.cfg.Temperature,
		"max_tokens":      c.cfg.MaxTokens,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.ClassifierSystemPrompt()},
			{"role": "user", "content": []map[string]any{
				{"type": "text", "text": llm.ClassifierUserPrompt()},
				{"type": "image_url", "image_url": map[string]any{"url": llm.DataURL(req.MIMEType, req.Image)}},
			}},
		},
	}
	if c.cfg.AzureEndpoint == "" {
		body["model"] = c.cfg.Model
	}

	content, err := c.complete(ctx, body)
	if err != nil {
		c.logger.Error("llm.classify.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Classification{}, nil, err
	}

	out, raw, err := llm.DecodeClassification(c.Name(), content, c.logger)
	if err != nil {
		c.logger.Error("llm.classify.invalid",
			"req_id", rid, "error", err, "content", string(content),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Classification{}, raw, err
	}

	c.logger.Info("llm.classify.ok",
		"req_id", rid,
		"type", out.Type,
		"confidence", out.Confidence,
		"marks", len(out.Marks),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, raw, nil
}

// ExtractEntities implements llm.FieldExtractor using text-only chat/completions.
func (c *Client) ExtractEntities(ctx context.Context, req llm.ExtractRequest) (llm.EntityFields, []byte, error) {
	rid := uuid.New().String()
	ctx = common.WithRequestID(ctx, rid)
	start := time.Now()

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(req.Text),
		"pages", req.PageCount,
	)

	body := map[string]any{
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.EntitySystemPrompt()},
			{"role": "user", "content": llm.EntityUserPrompt(req)},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(llm.BuildEntityJSONSchema())},
		},
	}
	if c.cfg.AzureEndpoint == "" {
		body["model"] = c.cfg.Model
	}

	content, err := c.complete(ctx, body)
	if err != nil {
		c.logger.Error("llm.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.EntityFields{}, nil, err
	}

	out, raw, err := llm.DecodeEntities(content, c.logger)
	if err != nil {
		c.logger.Error("llm.extract.schema_validation_failed",
			"req_id", rid, "error", err, "content", string(content),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.EntityFields{}, raw, fmt.Errorf("%w: %w", common.ErrTransient, err)
	}

	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"our_ref", out.OurRef,
		"date", out.LabReportCreationDate,
		"signatories", len(out.NamesAndDesignations),
		"test_rows", len(out.TestResults),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, raw, nil
}

// complete posts a chat completion and returns choices[0].message.content.
func (c *Client) complete(ctx context.Context, body map[string]any) ([]byte, error) {
	raw, err := llm.SendJSON(ctx, c.http, llm.Call{
		Provider: c.Name(),
		URL:      c.endpoint(),
		Headers:  c.headers(),
		Body:     body,
		Attempts: c.cfg.Attempts,
		Backoff:  gax.Backoff{Initial: 200 * time.Millisecond, Max: 2 * time.Second},
	}, c.logger)
	if err != nil {
		return nil, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return nil, &llm.ClassificationError{Provider: c.Name(), Reason: "decode response", Raw: raw, Err: err}
	}
	if len(cc.Choices) == 0 {
		return nil, &llm.ClassificationError{Provider: c.Name(), Reason: "no choices", Raw: raw}
	}
	return []byte(strings.TrimSpace(cc.Choices[0].Message.Content)), nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
