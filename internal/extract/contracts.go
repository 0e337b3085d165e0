package extract

import (
	"context"

	"github.com/joseph-ayodele/labcert-validator/internal/entity"
)

// Extractor is Stage 2: page text -> entity record (rules or LLM).
// Implementations return a finalized record; missing fields carry the
// "Not found" sentinel rather than an error.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, pages []entity.Page) (*entity.Record, error)
}
