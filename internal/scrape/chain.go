package scrape

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Chain tries each scraper in order and returns the first successful page.
type Chain struct {
	scrapers []Scraper
}

// NewChain builds a scraper chain. Order matters: earlier entries are
// cheaper/preferred providers, later ones fallbacks.
func NewChain(scrapers ...Scraper) *Chain {
	return &Chain{scrapers: scrapers}
}

// Scrape fetches url via the first provider that succeeds. It returns the
// last provider's error when all fail.
func (c *Chain) Scrape(ctx context.Context, url string) (*Page, error) {
	if len(c.scrapers) == 0 {
		return nil, eris.New("scrape: no providers configured")
	}

	var lastErr error
	for _, s := range c.scrapers {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		page, err := s.Scrape(ctx, url)
		if err == nil {
			return page, nil
		}
		lastErr = err
		zap.L().Debug("scrape provider failed, trying next",
			zap.String("provider", s.Name()),
			zap.String("url", url),
			zap.Error(err),
		)
	}
	return nil, lastErr
}
