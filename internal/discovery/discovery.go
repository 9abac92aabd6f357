// Package discovery proposes a company's direct competitors and validates
// their product URLs against live web search.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/marketintel/internal/model"
	"github.com/sells-group/marketintel/internal/resilience"
	"github.com/sells-group/marketintel/pkg/anthropic"
	"github.com/sells-group/marketintel/pkg/jina"
)

// ErrNoResults is returned when no usable competitor survives validation.
// The orchestrator treats it as an empty competitive landscape, not a
// pipeline failure.
var ErrNoResults = eris.New("discovery: no competitors found")

// Service discovers competitors for a base company profile.
type Service struct {
	llm       anthropic.Client
	search    jina.Client
	model     string
	maxTokens int64
	limit     int
	retry     resilience.RetryConfig
	log       *zap.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithModel sets the discovery model.
func WithModel(m string) Option {
	return func(s *Service) { s.model = m }
}

// WithSearch enables pricing-page validation via Jina web search.
func WithSearch(c jina.Client) Option {
	return func(s *Service) { s.search = c }
}

// WithLimit caps how many competitors are returned.
func WithLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithRetry overrides the retry policy for LLM calls.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(s *Service) { s.retry = cfg }
}

// New creates a discovery service.
func New(llm anthropic.Client, opts ...Option) *Service {
	s := &Service{
		llm:       llm,
		model:     "claude-haiku-4-5-20251001",
		maxTokens: 2048,
		limit:     5,
		retry:     resilience.DefaultRetryConfig(),
		log:       zap.L().Named("discovery"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const discoverySystem = `You are a market analyst. You identify a company's direct competitors.
Respond with JSON only, no prose.`

func discoveryPrompt(base *model.EntityProfile, scope, region string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Identify 3-5 direct competitors of %s (%s).\n", base.Name, base.URL)
	if base.Description != "" {
		fmt.Fprintf(&b, "What they sell: %s\n", base.Description)
	}
	if len(base.Features) > 0 {
		fmt.Fprintf(&b, "Key capabilities: %s\n", strings.Join(base.Features, ", "))
	}
	if scope != "" {
		fmt.Fprintf(&b, "Market scope: %s\n", scope)
	}
	if region != "" {
		fmt.Fprintf(&b, "Region: %s\n", region)
	}
	b.WriteString(`
Return a JSON array:
[{"name": "competitor name", "url": "https://...", "reason": "why they compete"}]

URL rules:
- Use the official company or product homepage, https only.
- Never link marketplaces, app stores, review sites, news articles or Wikipedia.
- Never include ` + base.Name + ` itself or a subsidiary of it.

Output only the JSON array.`)
	return b.String()
}

// pricing-page candidates must not land on one of these sections.
var skipPaths = []string{"/blog", "/news", "/press", "/careers", "/docs", "/support", "/legal", "/privacy", "/terms"}

// Discover proposes competitors for base and validates their URLs. The
// returned slice preserves the model's ranking, capped at the limit.
func (s *Service) Discover(ctx context.Context, base *model.EntityProfile, scope, region string) ([]model.Candidate, error) {
	retry := s.retry
	retry.OnRetry = resilience.RetryLogger("anthropic", "discover competitors")
	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return s.llm.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     s.model,
			MaxTokens: s.maxTokens,
			System:    discoverySystem,
			Messages:  []anthropic.Message{{Role: "user", Content: discoveryPrompt(base, scope, region)}},
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "discovery: propose competitors")
	}
	resp.Usage.LogCost(s.model, "discovery")

	var proposed []model.Candidate
	if err := json.Unmarshal([]byte(anthropic.StripCodeFence(anthropic.FirstText(resp))), &proposed); err != nil {
		return nil, eris.Wrap(err, "discovery: unmarshal candidates")
	}

	candidates := s.validate(ctx, base, proposed)
	if len(candidates) == 0 {
		return nil, ErrNoResults
	}
	if len(candidates) > s.limit {
		candidates = candidates[:s.limit]
	}
	return candidates, nil
}

// validate drops base-domain and duplicate-domain candidates and, when a
// search client is configured, upgrades each URL to a same-domain pricing
// page.
func (s *Service) validate(ctx context.Context, base *model.EntityProfile, proposed []model.Candidate) []model.Candidate {
	baseDomain := model.DomainOf(base.URL)
	baseName := strings.ToLower(strings.TrimSpace(base.Name))
	seen := make(map[string]bool)

	var out []model.Candidate
	for _, c := range proposed {
		c.Name = strings.TrimSpace(c.Name)
		c.URL = model.NormalizeURL(c.URL)
		domain := model.DomainOf(c.URL)

		if c.Name == "" || domain == "" {
			continue
		}
		if domain == baseDomain || strings.ToLower(c.Name) == baseName {
			s.log.Debug("dropping self-referential candidate", zap.String("name", c.Name))
			continue
		}
		if seen[domain] {
			continue
		}
		seen[domain] = true

		if upgraded := s.findPricingPage(ctx, c.Name, domain); upgraded != "" {
			c.URL = upgraded
		}
		out = append(out, c)
	}
	return out
}

// findPricingPage searches for the candidate's pricing page on its own
// domain. Empty result keeps the proposed URL.
func (s *Service) findPricingPage(ctx context.Context, name, domain string) string {
	if s.search == nil {
		return ""
	}

	resp, err := s.search.Search(ctx, name+" official pricing page", jina.WithSiteFilter(domain))
	if err != nil {
		s.log.Warn("pricing page search failed", zap.String("name", name), zap.Error(err))
		return ""
	}

	for _, r := range resp.Data {
		if model.DomainOf(r.URL) != domain {
			continue
		}
		if hasSkippedPath(r.URL) {
			continue
		}
		return model.NormalizeURL(r.URL)
	}
	return ""
}

func hasSkippedPath(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, p := range skipPaths {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
