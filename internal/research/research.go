// Package research turns one company URL into a structured EntityProfile
// by scraping its site and extracting a profile with Claude.
package research

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/marketintel/internal/model"
	"github.com/sells-group/marketintel/internal/resilience"
	"github.com/sells-group/marketintel/internal/scrape"
	"github.com/sells-group/marketintel/pkg/anthropic"
	"github.com/sells-group/marketintel/pkg/perplexity"
)

// PageScraper fetches a single page as markdown.
type PageScraper interface {
	Scrape(ctx context.Context, url string) (*scrape.Page, error)
}

// Service researches companies. Construct with New.
type Service struct {
	scraper      PageScraper
	llm          anthropic.Client
	news         perplexity.Client
	model        string
	maxTokens    int64
	pricingPaths []string
	retry        resilience.RetryConfig
	log          *zap.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithModel sets the extraction model.
func WithModel(m string) Option {
	return func(s *Service) { s.model = m }
}

// WithMaxTokens sets the extraction response budget.
func WithMaxTokens(n int64) Option {
	return func(s *Service) { s.maxTokens = n }
}

// WithPricingPaths sets the candidate pricing-page paths scraped in
// addition to the landing page.
func WithPricingPaths(paths []string) Option {
	return func(s *Service) { s.pricingPaths = paths }
}

// WithNewsClient enables live news enrichment via Perplexity.
func WithNewsClient(c perplexity.Client) Option {
	return func(s *Service) { s.news = c }
}

// WithRetry overrides the retry policy for extraction calls.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(s *Service) { s.retry = cfg }
}

// New creates a research service over a scraper and an LLM client.
func New(scraper PageScraper, llm anthropic.Client, opts ...Option) *Service {
	s := &Service{
		scraper:      scraper,
		llm:          llm,
		model:        "claude-haiku-4-5-20251001",
		maxTokens:    4096,
		pricingPaths: []string{"/pricing"},
		retry:        resilience.DefaultRetryConfig(),
		log:          zap.L().Named("research"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Research produces a structured profile for the company at url. Failures
// carry a FailureKind; callers decide whether a failure is fatal.
func (s *Service) Research(ctx context.Context, url string) (*model.EntityProfile, error) {
	url = model.NormalizeURL(url)
	started := time.Now()

	page, err := s.scraper.Scrape(ctx, url)
	if err != nil {
		return nil, fail(ctx, KindNotReachable, url, err)
	}

	content := page.Markdown
	sources := []model.SourceAttribution{{URL: url, Kind: "landing", FetchedAt: time.Now().UTC()}}

	// Pricing pages carry the tier data the detector depends on, so try
	// the usual paths; a miss is not an error.
	for _, path := range s.pricingPaths {
		pricingURL := url + path
		pricingPage, perr := s.scraper.Scrape(ctx, pricingURL)
		if perr != nil {
			s.log.Debug("pricing page not available",
				zap.String("url", pricingURL), zap.Error(perr))
			continue
		}
		content += "\n\n# Pricing page\n\n" + pricingPage.Markdown
		sources = append(sources, model.SourceAttribution{URL: pricingURL, Kind: "pricing", FetchedAt: time.Now().UTC()})
		break
	}

	retry := s.retry
	retry.OnRetry = resilience.RetryLogger("anthropic", "extract profile")
	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return s.llm.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     s.model,
			MaxTokens: s.maxTokens,
			System:    extractionSystem,
			Messages:  []anthropic.Message{{Role: "user", Content: extractionPrompt(url, content)}},
		})
	})
	if err != nil {
		return nil, fail(ctx, KindUnavailable, url, err)
	}
	resp.Usage.LogCost(s.model, "research")

	profile, err := parseProfile(anthropic.FirstText(resp), url)
	if err != nil {
		return nil, fail(ctx, KindParseFailed, url, err)
	}
	profile.Sources = sources

	s.enrichNews(ctx, profile)

	s.log.Info("profile extracted",
		zap.String("url", url),
		zap.String("name", profile.Name),
		zap.Int("pricing_tiers", len(profile.PricingTiers)),
		zap.Int("features", len(profile.Features)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return profile, nil
}

// enrichNews appends recent announcements found on the live web. Best
// effort: enrichment failures never fail the profile.
func (s *Service) enrichNews(ctx context.Context, profile *model.EntityProfile) {
	if s.news == nil {
		return
	}

	prompt := "List up to 5 recent news items about the company " + profile.Name +
		" (" + profile.URL + `) from the last 6 months. Respond with a JSON array only:
[{"title": "...", "summary": "...", "url": "...", "date": "YYYY-MM-DD"}]`

	answer, err := s.news.Ask(ctx, prompt)
	if err != nil {
		s.log.Warn("news enrichment failed", zap.String("name", profile.Name), zap.Error(err))
		return
	}

	var items []model.NewsItem
	if err := json.Unmarshal([]byte(anthropic.StripCodeFence(answer)), &items); err != nil {
		s.log.Warn("news enrichment unparseable", zap.String("name", profile.Name), zap.Error(err))
		return
	}

	seen := make(map[string]bool, len(profile.News))
	for _, n := range profile.News {
		seen[strings.ToLower(strings.TrimSpace(n.Title))] = true
	}
	for _, item := range items {
		key := strings.ToLower(strings.TrimSpace(item.Title))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		profile.News = append(profile.News, item)
	}
}
