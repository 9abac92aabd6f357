package scrape

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/marketintel/pkg/firecrawl"
)

// FirecrawlScraper fetches pages through the Firecrawl scrape API.
type FirecrawlScraper struct {
	client firecrawl.Client
}

// NewFirecrawl creates a Firecrawl-backed scraper.
func NewFirecrawl(client firecrawl.Client) *FirecrawlScraper {
	return &FirecrawlScraper{client: client}
}

func (s *FirecrawlScraper) Name() string { return "firecrawl" }

func (s *FirecrawlScraper) Scrape(ctx context.Context, url string) (*Page, error) {
	resp, err := s.client.Scrape(ctx, firecrawl.ScrapeRequest{
		URL:     url,
		Formats: []string{"markdown"},
	})
	if err != nil {
		return nil, eris.Wrap(err, "scrape: firecrawl")
	}
	if !resp.Success || strings.TrimSpace(resp.Data.Markdown) == "" {
		return nil, eris.Errorf("scrape: firecrawl returned no content for %s", url)
	}
	return &Page{
		URL:      url,
		Title:    resp.Data.Title,
		Markdown: resp.Data.Markdown,
	}, nil
}
