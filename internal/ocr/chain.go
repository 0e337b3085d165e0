package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/labcert-validator/internal/common"
	"github.com/joseph-ayodele/labcert-validator/internal/entity"
)

// PageProvider is the text provider contract shared by every implementation.
type PageProvider interface {
	Name() string
	ExtractPages(ctx context.Context, doc *entity.Document) ([]entity.Page, error)
}

// Chain tries providers in order and returns the first result that carries
// text. A permanent error stops the chain.
type Chain struct {
	providers []PageProvider
	logger    *slog.Logger
}

func NewChain(logger *slog.Logger, providers ...PageProvider) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{providers: providers, logger: logger}
}

func (c *Chain) Name() string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return strings.Join(names, ">")
}

func (c *Chain) ExtractPages(ctx context.Context, doc *entity.Document) ([]entity.Page, error) {
	var errs []error
	var empty []entity.Page
	for _, p := range c.providers {
		pages, err := p.ExtractPages(ctx, doc)
		if err != nil {
			if common.IsPermanent(err) || ctx.Err() != nil {
				return nil, err
			}
			c.logger.Warn("ocr.chain.provider_failed", "provider", p.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		if countNonSpace(entity.PagesText(pages)) > 0 {
			return pages, nil
		}
		if empty == nil {
			empty = pages
		}
		c.logger.Warn("ocr.chain.provider_empty", "provider", p.Name())
	}
	if empty != nil {
		return empty, nil
	}
	if len(errs) == 0 {
		return nil, common.NewAppError(common.CodeConfig, "no text providers configured", common.ErrInvalidInput)
	}
	return nil, fmt.Errorf("%w: %w", common.ErrTransient, errors.Join(errs...))
}
