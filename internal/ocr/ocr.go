// Package ocr provides the local text providers: poppler's pdftotext with a
// tesseract fallback for scanned pages, and a pure-Go provider on tabula.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/labcert-validator/internal/entity"
	"github.com/joseph-ayodele/labcert-validator/internal/textnorm"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned pages, default 300
	MaxPages      int    // 0 = no limit on OCR'd pages

	TessdataDir         string
	EnableTSVConfidence bool

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default

	// MinPageChars is the number of non-space characters below which a
	// page's text layer is treated as missing and the page is OCR'd.
	MinPageChars int
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MinPageChars <= 0 {
		cfg.MinPageChars = 40
	}
	return &Extractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// WithRunner swaps the command runner; tests use it to stub poppler and tesseract.
func (e *Extractor) WithRunner(r Runner) *Extractor {
	e.runner = r
	return e
}

func (e *Extractor) Name() string { return "pdftotext" }

// ExtractPages reads the text layer and OCRs any page whose layer is empty
// or too thin to carry a lab report.
func (e *Extractor) ExtractPages(ctx context.Context, doc *entity.Document) ([]entity.Page, error) {
	start := time.Now()
	path, cleanup, err := materialize(doc, "lc-text-*.pdf")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	texts, err := e.pdfToText(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	if doc.PageCount > len(texts) {
		texts = append(texts, make([]string, doc.PageCount-len(texts))...)
	}

	pages := make([]entity.Page, len(texts))
	ocrd := 0
	var warnings []string
	for i, txt := range texts {
		n := i + 1
		if countNonSpace(txt) < e.cfg.MinPageChars && (e.cfg.MaxPages == 0 || ocrd < e.cfg.MaxPages) {
			ocrText, conf, w, err := e.pageOCR(ctx, path, n)
			warnings = append(warnings, w...)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("page %d: %v", n, err))
			} else if countNonSpace(ocrText) > countNonSpace(txt) {
				e.logger.Debug("ocr.page.fallback", "page", n, "confidence", conf)
				txt = ocrText
				ocrd++
			}
		}
		pages[i] = entity.Page{Number: n, Text: textnorm.Clean(txt)}
	}

	e.logger.Info("ocr.extract.ok",
		"path", doc.Path,
		"pages", len(pages),
		"ocr_pages", ocrd,
		"warnings", len(warnings),
		"confidence", heuristicConfidence(entity.PagesText(pages)),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return pages, nil
}
