package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/labcert-validator/internal/entity"
	"github.com/joseph-ayodele/labcert-validator/internal/extract"
)

// ExtractStage turns page text into an entity record.
type ExtractStage struct {
	Extractor extract.Extractor
	Logger    *slog.Logger
}

func NewExtractStage(ext extract.Extractor, logger *slog.Logger) *ExtractStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractStage{Extractor: ext, Logger: logger}
}

func (s *ExtractStage) Name() string { return s.Extractor.Name() }

func (s *ExtractStage) Run(ctx context.Context, pages []entity.Page) (*entity.Record, error) {
	rec, err := s.Extractor.Extract(ctx, pages)
	if err != nil {
		return nil, fmt.Errorf("extract entities: %w", err)
	}
	return rec, nil
}
