package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tsawler/tabula"

	"github.com/joseph-ayodele/labcert-validator/internal/entity"
	"github.com/joseph-ayodele/labcert-validator/internal/textnorm"
)

// TabulaProvider reads the PDF text layer in pure Go. It needs no external
// binaries but cannot OCR scanned pages.
type TabulaProvider struct {
	logger *slog.Logger
}

func NewTabulaProvider(logger *slog.Logger) *TabulaProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &TabulaProvider{logger: logger}
}

func (p *TabulaProvider) Name() string { return "tabula" }

func (p *TabulaProvider) ExtractPages(ctx context.Context, doc *entity.Document) ([]entity.Page, error) {
	start := time.Now()
	path, cleanup, err := materialize(doc, "lc-tabula-*.pdf")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	ext := tabula.Open(path)
	n, err := ext.PageCount()
	_ = ext.Close()
	if err != nil {
		return nil, fmt.Errorf("tabula page count: %w", err)
	}

	pages := make([]entity.Page, 0, n)
	warned := 0
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Text closes the extractor it was called on.
		txt, warnings, err := tabula.Open(path).Pages(i).PreserveLayout().Text()
		if err != nil {
			return nil, fmt.Errorf("tabula page %d: %w", i, err)
		}
		warned += len(warnings)
		pages = append(pages, entity.Page{Number: i, Text: textnorm.Clean(txt)})
	}

	p.logger.Info("ocr.tabula.ok",
		"path", doc.Path,
		"pages", len(pages),
		"warnings", warned,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return pages, nil
}
