package scrape

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/marketintel/pkg/jina"
)

// JinaScraper fetches pages through the Jina AI Reader.
type JinaScraper struct {
	client jina.Client
}

// NewJina creates a Jina-backed scraper.
func NewJina(client jina.Client) *JinaScraper {
	return &JinaScraper{client: client}
}

func (s *JinaScraper) Name() string { return "jina" }

func (s *JinaScraper) Scrape(ctx context.Context, url string) (*Page, error) {
	resp, err := s.client.Read(ctx, url)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: jina read")
	}
	if strings.TrimSpace(resp.Data.Content) == "" {
		return nil, eris.Errorf("scrape: jina returned empty content for %s", url)
	}
	return &Page{
		URL:      url,
		Title:    resp.Data.Title,
		Markdown: resp.Data.Content,
	}, nil
}
