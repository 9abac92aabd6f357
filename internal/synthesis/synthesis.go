// Package synthesis compares a base company against its competitors and
// produces the final ComparisonSummary.
package synthesis

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
)

// ErrMalformedOutput is returned when neither the primary nor the fallback
// prompt yields a parseable summary.
var ErrMalformedOutput = eris.New("synthesis: malformed model output")

// Service synthesizes comparison summaries.
type Service struct {
	llm       anthropic.Client
	model     string
	maxTokens int64
	retry     resilience.RetryConfig
	log       *zap.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithModel sets the synthesis model.
func WithModel(m string) Option {
	return func(s *Service) { s.model = m }
}

// WithMaxTokens sets the response budget.
func WithMaxTokens(n int64) Option {
	return func(s *Service) { s.maxTokens = n }
}

// WithRetry overrides the retry policy for LLM calls.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(s *Service) { s.retry = cfg }
}

// New creates a synthesis service.
func New(llm anthropic.Client, opts ...Option) *Service {
	s := &Service{
		llm:       llm,
		model:     "claude-sonnet-4-5-20250929",
		maxTokens: 4096,
		retry:     resilience.DefaultRetryConfig(),
		log:       zap.L().Named("synthesis"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize produces the comparison between base and its competitors.
// When the full prompt yields nothing usable it retries once with a
// minimal names-only prompt whose output is graded low confidence.
func (s *Service) Synthesize(ctx context.Context, base *model.EntityProfile, competitors []model.EntityProfile, scope, region string) (*model.ComparisonSummary, error) {
	summary, err := s.run(ctx, fullPrompt(base, competitors, scope, region))
	if err == nil && !vacuous(summary) {
		summary.SourcesUsed = sourceURLs(base, competitors)
		return summary, nil
	}
	if err != nil && !eris.Is(err, ErrMalformedOutput) {
		return nil, err
	}

	s.log.Warn("primary synthesis unusable, using names-only fallback",
		zap.String("base", base.Name), zap.Error(err))

	summary, err = s.run(ctx, fallbackPrompt(base, competitors))
	if err != nil {
		return nil, err
	}
	downgrade(summary)
	summary.SourcesUsed = sourceURLs(base, competitors)
	return summary, nil
}

func (s *Service) run(ctx context.Context, prompt string) (*model.ComparisonSummary, error) {
	retry := s.retry
	retry.OnRetry = resilience.RetryLogger("anthropic", "synthesize report")
	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return s.llm.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     s.model,
			MaxTokens: s.maxTokens,
			System:    synthesisSystem,
			Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "synthesis: create message")
	}
	resp.Usage.LogCost(s.model, "synthesis")

	var summary model.ComparisonSummary
	if err := json.Unmarshal([]byte(anthropic.StripCodeFence(anthropic.FirstText(resp))), &summary); err != nil {
		return nil, eris.Wrap(ErrMalformedOutput, err.Error())
	}
	return &summary, nil
}

// vacuous reports whether the model produced an empty shell: no narrative
// and no usable metric values.
func vacuous(sum *model.ComparisonSummary) bool {
	usable := func(m model.Metric) bool {
		v := strings.TrimSpace(strings.ToUpper(m.Value))
		return v != "" && v != "N/A" && v != "UNKNOWN"
	}
	return strings.TrimSpace(sum.Narrative) == "" &&
		!usable(sum.WinRate) && !usable(sum.MarketShareEstimate) && !usable(sum.PricingAdvantage)
}

func downgrade(sum *model.ComparisonSummary) {
	sum.WinRate.Confidence = model.ConfidenceLow
	sum.MarketShareEstimate.Confidence = model.ConfidenceLow
	sum.PricingAdvantage.Confidence = model.ConfidenceLow
	if sum.ConfidenceNote == "" {
		sum.ConfidenceNote = "Generated from company names only; detailed profile data was unavailable."
	}
}

func sourceURLs(base *model.EntityProfile, competitors []model.EntityProfile) []string {
	urls := make([]string, 0, 1+len(competitors))
	urls = append(urls, base.URL)
	for _, c := range competitors {
		urls = append(urls, c.URL)
	}
	return urls
}

const synthesisSystem = `You are a senior competitive strategy analyst. You produce rigorous,
sourced market comparisons. Respond with JSON only, no prose.`

const summarySchema = `{
  "narrative_text": "3-5 paragraph competitive analysis",
  "win_rate": {"value": "e.g. ~40%", "reasoning": "...", "confidence": "high|medium|low", "inputs_used": ["pricing_tiers", "feature_list"]},
  "market_share_estimate": {"value": "...", "reasoning": "...", "confidence": "...", "inputs_used": ["..."]},
  "pricing_advantage": {"value": "...", "reasoning": "...", "confidence": "...", "inputs_used": ["..."]},
  "market_segments": [{"name": "...", "leader": "...", "share": "...", "growth": "...", "reasoning": "..."}],
  "strategic_recommendations": {
    "immediate_actions": [{"text": "...", "reasoning": "..."}],
    "product_priorities": [{"text": "...", "reasoning": "..."}],
    "market_focus": [{"text": "...", "reasoning": "..."}]
  },
  "confidence_note": "one sentence on overall data quality"
}`

func fullPrompt(base *model.EntityProfile, competitors []model.EntityProfile, scope, region string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Compare %s against its competitors using the profiles below.\n", base.Name)
	if scope != "" {
		fmt.Fprintf(&b, "Market scope: %s\n", scope)
	}
	if region != "" {
		fmt.Fprintf(&b, "Region: %s\n", region)
	}

	b.WriteString("\nBase company profile:\n")
	writeProfile(&b, base)
	b.WriteString("\nCompetitor profiles:\n")
	for i := range competitors {
		writeProfile(&b, &competitors[i])
	}

	b.WriteString("\nReturn a single JSON object with exactly this shape:\n")
	b.WriteString(summarySchema)
	b.WriteString(`

Rules:
- Every metric needs reasoning grounded in the profile data, a confidence grade, and the profile fields it used.
- Use "N/A" for a metric the data cannot support rather than inventing a number.
- Output only the JSON object.`)
	return b.String()
}

func fallbackPrompt(base *model.EntityProfile, competitors []model.EntityProfile) string {
	names := make([]string, 0, len(competitors))
	for _, c := range competitors {
		names = append(names, c.Name)
	}
	return fmt.Sprintf(`Using only your general knowledge, write a brief competitive overview of %s
versus: %s.

Return a single JSON object with exactly this shape:
%s

Mark every confidence as "low". Output only the JSON object.`,
		base.Name, strings.Join(names, ", "), summarySchema)
}

func writeProfile(b *strings.Builder, p *model.EntityProfile) {
	data, err := json.Marshal(p)
	if err != nil {
		fmt.Fprintf(b, "- %s (%s)\n", p.Name, p.URL)
		return
	}
	b.WriteString(string(data))
	b.WriteString("\n")
}
