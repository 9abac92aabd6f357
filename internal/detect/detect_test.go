package detect

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/marketintel/internal/model"
)

var now = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func report(competitors ...model.EntityProfile) *model.MarketReport {
	return &model.MarketReport{
		Base:        model.EntityProfile{Name: "Acme", URL: "https://acme.com"},
		Competitors: competitors,
	}
}

func rival(mutate ...func(*model.EntityProfile)) model.EntityProfile {
	p := model.EntityProfile{
		Name: "Rival",
		URL:  "https://rival.com",
		PricingTiers: []model.PricingTier{
			{Name: "Starter", Price: "$49/mo"},
			{Name: "Pro", Price: "$99/mo"},
		},
		Features: []string{"Invoicing", "Payroll"},
		News: []model.NewsItem{
			{Title: "Rival opens Berlin office"},
		},
		SWOT: &model.SWOTAnalysis{
			Threats:       []string{"Market saturation"},
			Opportunities: []string{"SMB segment"},
		},
	}
	for _, m := range mutate {
		m(&p)
	}
	return p
}

func TestIdenticalReportsYieldNoEvents(t *testing.T) {
	prev := report(rival())
	curr := report(rival())
	assert.Empty(t, Detect(prev, curr, "m1", now))
}

func TestNewCompetitorIsExemptFromFieldDiffs(t *testing.T) {
	prev := report()
	curr := report(rival())

	events := Detect(prev, curr, "m1", now)
	require.Len(t, events, 1)
	assert.Equal(t, model.ChangeNewCompetitor, events[0].Type)
	assert.Equal(t, model.SeverityMedium, events[0].Severity)
	assert.Equal(t, "Rival", events[0].CompetitorName)
	assert.Equal(t, "https://rival.com", events[0].NewValue)
}

func TestCompetitorMatchIsCaseInsensitive(t *testing.T) {
	prev := report(rival(func(p *model.EntityProfile) { p.Name = "RIVAL" }))
	curr := report(rival())

	events := Detect(prev, curr, "m1", now)
	for _, e := range events {
		assert.NotEqual(t, model.ChangeNewCompetitor, e.Type)
	}
}

func TestPricingChangeIsHighWithVerbatimValues(t *testing.T) {
	prev := report(rival())
	curr := report(rival(func(p *model.EntityProfile) {
		p.PricingTiers[0].Price = "$59/mo"
	}))

	events := Detect(prev, curr, "m1", now)
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, model.ChangePricing, e.Type)
	assert.Equal(t, model.SeverityHigh, e.Severity)
	assert.Equal(t, "$49/mo", e.OldValue)
	assert.Equal(t, "$59/mo", e.NewValue)
}

func TestPricingTierOnlyInOneSnapshotIsIgnored(t *testing.T) {
	prev := report(rival())
	curr := report(rival(func(p *model.EntityProfile) {
		p.PricingTiers = append(p.PricingTiers, model.PricingTier{Name: "Enterprise", Price: "Custom"})
	}))

	assert.Empty(t, Detect(prev, curr, "m1", now))
}

func TestNewFeatureEvents(t *testing.T) {
	prev := report(rival())
	curr := report(rival(func(p *model.EntityProfile) {
		p.Features = append(p.Features, "Forecasting")
	}))

	events := Detect(prev, curr, "m1", now)
	require.Len(t, events, 1)
	assert.Equal(t, model.ChangeNewFeature, events[0].Type)
	assert.Equal(t, model.SeverityMedium, events[0].Severity)
	assert.Equal(t, "Forecasting", events[0].NewValue)
}

func TestRemovedFeaturesSingleEvent(t *testing.T) {
	prev := report(rival())
	curr := report(rival(func(p *model.EntityProfile) {
		p.Features = []string{"Invoicing"}
	}))

	events := Detect(prev, curr, "m1", now)
	require.Len(t, events, 1)
	assert.Equal(t, model.ChangeRemovedFeature, events[0].Type)
	assert.Equal(t, model.SeverityHigh, events[0].Severity)
	assert.Equal(t, "Payroll", events[0].OldValue)
}

func TestRemovedFeaturesEscalateToCritical(t *testing.T) {
	prev := report(rival(func(p *model.EntityProfile) {
		p.Features = []string{"A", "B", "C", "D", "E"}
	}))
	curr := report(rival(func(p *model.EntityProfile) {
		p.Features = []string{"A"}
	}))

	events := Detect(prev, curr, "m1", now)
	require.Len(t, events, 1)
	assert.Equal(t, model.SeverityCritical, events[0].Severity)
}

func TestNewsKeywordSeverity(t *testing.T) {
	prev := report(rival())
	curr := report(rival(func(p *model.EntityProfile) {
		p.News = append(p.News,
			model.NewsItem{Title: "Rival announces acquisition of Other"},
			model.NewsItem{Title: "Rival launches forecasting product"},
			model.NewsItem{Title: "Rival sponsors local conference"},
		)
	}))

	events := Detect(prev, curr, "m1", now)
	require.Len(t, events, 3)
	assert.Equal(t, model.SeverityHigh, events[0].Severity)
	assert.Equal(t, model.SeverityMedium, events[1].Severity)
	assert.Equal(t, model.SeverityLow, events[2].Severity)
	for _, e := range events {
		assert.Equal(t, model.ChangeNews, e.Type)
	}
}

func TestSWOTNewThreatAndOpportunity(t *testing.T) {
	prev := report(rival())
	curr := report(rival(func(p *model.EntityProfile) {
		p.SWOT.Threats = append(p.SWOT.Threats, "Open-source alternatives")
		p.SWOT.Opportunities = append(p.SWOT.Opportunities, "Enterprise tier")
	}))

	events := Detect(prev, curr, "m1", now)
	require.Len(t, events, 2)
	assert.Equal(t, model.ChangeSWOT, events[0].Type)
	assert.Equal(t, "Open-source alternatives", events[0].NewValue)
	assert.Equal(t, "Enterprise tier", events[1].NewValue)
	for _, e := range events {
		assert.Equal(t, model.SeverityMedium, e.Severity)
	}
}

func TestSharedDetectedAtAndMonitorID(t *testing.T) {
	prev := report()
	curr := report(rival(), rival(func(p *model.EntityProfile) {
		p.Name = "Other"
		p.URL = "https://other.io"
	}))

	events := Detect(prev, curr, "m42", now)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, "m42", e.MonitorID)
		assert.Equal(t, now, e.DetectedAt)
		assert.NotEmpty(t, e.ID)
	}
	// Current-report competitor order is preserved.
	assert.Equal(t, "Rival", events[0].CompetitorName)
	assert.Equal(t, "Other", events[1].CompetitorName)
}

func TestVanishedCompetitorEmitsNothing(t *testing.T) {
	prev := report(rival())
	curr := report()
	assert.Empty(t, Detect(prev, curr, "m1", now))
}

func TestLoadNewsRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - severity: critical
    keywords: ["data breach"]
  - severity: high
    keywords: ["pricing"]
`), 0o644))

	rules, err := LoadNewsRules(path)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, model.SeverityCritical, classifyNews("Rival hit by data breach", rules))
	assert.Equal(t, model.SeverityHigh, classifyNews("Rival pricing update", rules))
	assert.Equal(t, model.SeverityLow, classifyNews("Rival hosts webinar", rules))
}

func TestLoadNewsRulesMissingFile(t *testing.T) {
	_, err := LoadNewsRules(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
