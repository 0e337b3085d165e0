package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/joseph-ayodele/labcert-validator/internal/entity"
)

// pdfToText returns one string per page.
func (e *Extractor) pdfToText(ctx context.Context, path string) ([]string, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, truncate(string(errb), 512))
	}
	return splitPages(string(out)), nil
}

// pageOCR rasterizes one page and runs tesseract on it.
func (e *Extractor) pageOCR(ctx context.Context, path string, page int) (string, float32, []string, error) {
	tmpDir, err := os.MkdirTemp("", "lc-pp-*")
	if err != nil {
		return "", 0, nil, err
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			e.logger.Warn("ocr.tmp.cleanup_failed", "dir", path, "error", err)
		}
	}(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	p := strconv.Itoa(page)
	// pdftoppm -r 300 -f N -l N -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(e.cfg.DPI), "-f", p, "-l", p, "-png", path, prefix)
	if err != nil {
		return "", 0, []string{string(errb)}, fmt.Errorf("pdftoppm: %w", err)
	}

	// pdftoppm names output prefix-N.png with N zero-padded to the page count width
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return "", 0, []string{"pdftoppm produced no images"}, fmt.Errorf("no pages rendered")
	}

	txt, warns, err := e.tesseractOCR(ctx, matches[0])
	if err != nil {
		return "", 0, warns, err
	}
	conf := heuristicConfidence(txt)
	if e.cfg.EnableTSVConfidence {
		if c, w, err := e.tesseractTSVConfidence(ctx, matches[0]); err == nil && c > 0 {
			conf = 0.7*c + 0.3*conf
			warns = append(warns, w...)
		}
	}
	return txt, conf, warns, nil
}

// splitPages splits pdftotext output on form feeds. pdftotext terminates
// every page with one, so a trailing empty element is dropped.
func splitPages(s string) []string {
	parts := strings.Split(s, "\f")
	if len(parts) > 1 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// materialize returns a filesystem path for doc, writing Data to a temp
// file when the document did not come from disk.
func materialize(doc *entity.Document, pattern string) (string, func(), error) {
	if doc.Path != "" {
		if _, err := os.Stat(doc.Path); err == nil {
			return doc.Path, func() {}, nil
		}
	}
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", nil, err
	}
	if _, err := f.Write(doc.Data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", nil, err
	}
	return f.Name(), func() { _ = os.Remove(f.Name()) }, nil
}

func countNonSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
