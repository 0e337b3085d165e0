package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/labcert-validator/internal/common"
	"github.com/joseph-ayodele/labcert-validator/internal/entity"
)

// TextStage runs the text provider and degrades to empty pages when it
// fails for any reason other than a permanent error or cancellation.
type TextStage struct {
	Provider TextProvider
	Logger   *slog.Logger
}

func NewTextStage(provider TextProvider, logger *slog.Logger) *TextStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextStage{Provider: provider, Logger: logger}
}

func (s *TextStage) Name() string { return s.Provider.Name() }

// Run returns one page per document page, in order, plus notes describing
// any degradation.
func (s *TextStage) Run(ctx context.Context, doc *entity.Document) ([]entity.Page, []string, error) {
	pages, err := s.Provider.ExtractPages(ctx, doc)
	var notes []string
	if err != nil {
		if common.IsPermanent(err) {
			return nil, nil, fmt.Errorf("text extraction: %w", err)
		}
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		s.Logger.Warn("processor.text.degraded", "path", doc.Path, "provider", s.Provider.Name(), "err", err)
		notes = append(notes, "text extraction failed: "+err.Error())
		pages = nil
	}

	n := max(doc.PageCount, len(pages))
	out := make([]entity.Page, n)
	for i := range out {
		out[i].Number = i + 1
	}
	for _, p := range pages {
		if p.Number >= 1 && p.Number <= n {
			out[p.Number-1].Text = p.Text
			out[p.Number-1].Images = p.Images
		}
	}
	if err == nil && strings.TrimSpace(entity.PagesText(out)) == "" {
		notes = append(notes, "no text found in document")
	}
	return out, notes, nil
}
