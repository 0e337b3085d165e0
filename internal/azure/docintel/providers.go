package docintel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/labcert-validator/constants"
	"github.com/joseph-ayodele/labcert-validator/internal/common"
	"github.com/joseph-ayodele/labcert-validator/internal/entity"
	"github.com/joseph-ayodele/labcert-validator/internal/textnorm"
)

// TextProvider turns layout lines into page text.
type TextProvider struct {
	client *Client
}

func NewTextProvider(client *Client) *TextProvider {
	return &TextProvider{client: client}
}

func (p *TextProvider) Name() string { return "azure-document-intelligence" }

func (p *TextProvider) ExtractPages(ctx context.Context, doc *entity.Document) ([]entity.Page, error) {
	a, err := p.client.Analyze(ctx, doc)
	if err != nil {
		return nil, err
	}
	n := doc.PageCount
	for _, pg := range a.Result.Pages {
		if pg.PageNumber > n {
			n = pg.PageNumber
		}
	}
	pages := make([]entity.Page, n)
	for i := range pages {
		pages[i].Number = i + 1
	}
	for _, pg := range a.Result.Pages {
		if pg.PageNumber < 1 {
			continue
		}
		lines := make([]string, 0, len(pg.Lines))
		for _, l := range pg.Lines {
			lines = append(lines, l.Content)
		}
		pages[pg.PageNumber-1].Text = textnorm.Clean(strings.Join(lines, "\n"))
	}
	return pages, nil
}

// FigureProvider yields layout-detected figures as signature candidates.
type FigureProvider struct {
	client *Client
}

func NewFigureProvider(client *Client) *FigureProvider {
	return &FigureProvider{client: client}
}

func (p *FigureProvider) Channel() constants.ImageSource { return constants.SourceLayout }

// ExtractImages downloads every figure of the analysis. A figure that fails
// to download is skipped; the channel fails only when all of them do or the
// failure is permanent.
func (p *FigureProvider) ExtractImages(ctx context.Context, doc *entity.Document) ([]entity.Image, error) {
	a, err := p.client.Analyze(ctx, doc)
	if err != nil {
		return nil, err
	}
	if len(a.Result.Figures) == 0 {
		return nil, nil
	}
	if a.ResultID == "" {
		return nil, errNoResultID
	}

	var (
		out  []entity.Image
		errs []error
	)
	for _, fig := range a.Result.Figures {
		data, mime, err := p.client.Figure(ctx, a.ResultID, fig.ID)
		if err != nil {
			if common.IsPermanent(err) || ctx.Err() != nil {
				return nil, err
			}
			p.client.logger.Warn("docintel.figure.failed", "path", doc.Path, "figure", fig.ID, "error", err)
			errs = append(errs, err)
			continue
		}
		out = append(out, entity.Image{
			PageNumber: fig.PageNumber(),
			Data:       data,
			MIMEType:   mime,
			Source:     constants.SourceLayout,
			Ref:        fig.ID,
		})
	}
	if len(out) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("all %d figures failed: %w", len(errs), errors.Join(errs...))
	}
	return out, nil
}
