// Package scrape turns a URL into markdown via a chain of providers.
package scrape

import "context"

// Page is the markdown rendering of a single fetched URL.
type Page struct {
	URL      string
	Title    string
	Markdown string
}

// Scraper fetches a single page as markdown.
type Scraper interface {
	// Name identifies the provider for logging.
	Name() string
	// Scrape fetches the page. An empty-content result is an error.
	Scrape(ctx context.Context, url string) (*Page, error)
}
