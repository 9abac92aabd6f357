package pipeline

import (
	"context"
	"strconv"

	"github.com/sells-group/marketintel/internal/model"
)

// Stub invokers let the engine run end to end without API keys. They are
// used by local development (no anthropic key configured) and by tests.

// StubResearcher returns canned profiles keyed by URL, or a minimal
// profile derived from the URL.
type StubResearcher struct {
	Profiles map[string]*model.EntityProfile
	Err      error
}

var _ Researcher = (*StubResearcher)(nil)

func (s *StubResearcher) Research(_ context.Context, url string) (*model.EntityProfile, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	url = model.NormalizeURL(url)
	if p, ok := s.Profiles[url]; ok {
		out := *p
		return &out, nil
	}
	return &model.EntityProfile{
		Name: model.CompanyNameFromURL(url),
		URL:  url,
		PricingTiers: []model.PricingTier{
			{Name: "Starter", Price: "$29/mo", Features: []string{"Core features"}},
			{Name: "Pro", Price: "$79/mo", Features: []string{"Everything in Starter", "Priority support"}},
		},
		Features: []string{"Dashboards", "Integrations", "Reporting"},
	}, nil
}

// StubDiscoverer returns a fixed candidate list.
type StubDiscoverer struct {
	Candidates []model.Candidate
	Err        error
}

var _ Discoverer = (*StubDiscoverer)(nil)

func (s *StubDiscoverer) Discover(_ context.Context, _ *model.EntityProfile, _, _ string) ([]model.Candidate, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Candidates != nil {
		return s.Candidates, nil
	}
	return []model.Candidate{
		{Name: "Northstar", URL: "https://northstar.example", Reason: "overlapping product"},
		{Name: "Beacon", URL: "https://beacon.example", Reason: "same segment"},
	}, nil
}

// StubSynthesizer produces a deterministic summary from its inputs.
type StubSynthesizer struct {
	Err error
}

var _ Synthesizer = (*StubSynthesizer)(nil)

func (s *StubSynthesizer) Synthesize(_ context.Context, base *model.EntityProfile, competitors []model.EntityProfile, _, _ string) (*model.ComparisonSummary, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	metric := func(v string) model.Metric {
		return model.Metric{Value: v, Reasoning: "stubbed", Confidence: model.ConfidenceLow}
	}
	return &model.ComparisonSummary{
		Narrative:           base.Name + " compared against " + strconv.Itoa(len(competitors)) + " competitors.",
		WinRate:             metric("~50%"),
		MarketShareEstimate: metric("N/A"),
		PricingAdvantage:    metric("neutral"),
		ConfidenceNote:      "Stubbed synthesis output.",
	}, nil
}
