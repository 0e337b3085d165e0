// Package images produces and prepares signature candidate images.
package images

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/labcert-validator/constants"
	"github.com/joseph-ayodele/labcert-validator/internal/entity"
)

// EmbeddedProvider extracts image XObjects straight from the PDF.
type EmbeddedProvider struct {
	minBytes int
	logger   *slog.Logger
}

// NewEmbeddedProvider returns a provider that drops images smaller than minBytes.
func NewEmbeddedProvider(minBytes int, logger *slog.Logger) *EmbeddedProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddedProvider{minBytes: minBytes, logger: logger}
}

func (p *EmbeddedProvider) Channel() constants.ImageSource { return constants.SourceEmbedded }

func (p *EmbeddedProvider) ExtractImages(ctx context.Context, doc *entity.Document) ([]entity.Image, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pages, err := api.ExtractImagesRaw(bytes.NewReader(doc.Data), nil, conf)
	if err != nil {
		return nil, fmt.Errorf("extract embedded images: %w", err)
	}

	var out []entity.Image
	small := 0
	for _, byObj := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		objNrs := make([]int, 0, len(byObj))
		for nr := range byObj {
			objNrs = append(objNrs, nr)
		}
		sort.Ints(objNrs)

		for _, nr := range objNrs {
			img := byObj[nr]
			if img.Reader == nil {
				continue
			}
			data, err := io.ReadAll(img)
			if err != nil {
				p.logger.Warn("images.embedded.read_failed", "path", doc.Path, "obj", nr, "error", err)
				continue
			}
			if len(data) == 0 || len(data) < p.minBytes {
				small++
				continue
			}
			out = append(out, entity.Image{
				PageNumber: img.PageNr,
				Data:       data,
				MIMEType:   mimeFor(img.FileType, data),
				Source:     constants.SourceEmbedded,
				Ref:        fmt.Sprintf("obj%d", nr),
			})
		}
	}

	p.logger.Info("images.embedded.ok", "path", doc.Path, "images", len(out), "skipped_small", small)
	return out, nil
}

func mimeFor(fileType string, data []byte) string {
	switch strings.ToLower(fileType) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "tif", "tiff":
		return "image/tiff"
	case "jp2", "jpx":
		return "image/jp2"
	}
	return http.DetectContentType(data)
}
