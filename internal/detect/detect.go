// Package detect diffs two report snapshots of the same company into a
// flat list of change events. Detection is pure: same inputs, same events.
package detect

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/marketintel/internal/model"
)

// Option configures a detection run.
type Option func(*detector)

// WithNewsRules overrides the news severity keyword rules.
func WithNewsRules(rules []KeywordRule) Option {
	return func(d *detector) {
		if len(rules) > 0 {
			d.newsRules = rules
		}
	}
}

type detector struct {
	monitorID  string
	detectedAt time.Time
	newsRules  []KeywordRule
	events     []model.ChangeEvent
}

// Detect compares the previous and current reports and returns the changes
// in a stable order: competitors in current-report order, and within each
// competitor pricing, features, news, then SWOT. All events of one run
// share detectedAt.
func Detect(prev, curr *model.MarketReport, monitorID string, detectedAt time.Time, opts ...Option) []model.ChangeEvent {
	d := &detector{
		monitorID:  monitorID,
		detectedAt: detectedAt.UTC(),
		newsRules:  DefaultNewsRules(),
	}
	for _, opt := range opts {
		opt(d)
	}

	prevByName := make(map[string]*model.EntityProfile, len(prev.Competitors))
	for i := range prev.Competitors {
		prevByName[nameKey(prev.Competitors[i].Name)] = &prev.Competitors[i]
	}

	for i := range curr.Competitors {
		c := &curr.Competitors[i]
		old, known := prevByName[nameKey(c.Name)]
		if !known {
			// A competitor seen for the first time gets a single arrival
			// event; its fields have no baseline to diff against.
			d.add(c.Name, model.ChangeNewCompetitor, model.SeverityMedium,
				fmt.Sprintf("New competitor detected: %s", c.Name),
				fmt.Sprintf("%s appeared in the competitive landscape.", c.Name),
				"", c.URL)
			continue
		}

		d.diffPricing(old, c)
		d.diffFeatures(old, c)
		d.diffNews(old, c)
		d.diffSWOT(old, c)
	}

	return d.events
}

func (d *detector) diffPricing(old, curr *model.EntityProfile) {
	oldTiers := make(map[string]string, len(old.PricingTiers))
	for _, t := range old.PricingTiers {
		oldTiers[nameKey(t.Name)] = strings.TrimSpace(t.Price)
	}

	for _, t := range curr.PricingTiers {
		oldPrice, ok := oldTiers[nameKey(t.Name)]
		if !ok {
			continue
		}
		newPrice := strings.TrimSpace(t.Price)
		if oldPrice == newPrice {
			continue
		}
		d.add(curr.Name, model.ChangePricing, model.SeverityHigh,
			fmt.Sprintf("%s changed pricing on %s", curr.Name, t.Name),
			fmt.Sprintf("Tier %q moved from %q to %q.", t.Name, oldPrice, newPrice),
			oldPrice, newPrice)
	}
}

func (d *detector) diffFeatures(old, curr *model.EntityProfile) {
	oldSet := stringSet(old.Features)
	currSet := stringSet(curr.Features)

	for _, f := range curr.Features {
		if oldSet[nameKey(f)] {
			continue
		}
		d.add(curr.Name, model.ChangeNewFeature, model.SeverityMedium,
			fmt.Sprintf("%s added feature: %s", curr.Name, f),
			fmt.Sprintf("%s now lists %q.", curr.Name, f),
			"", f)
	}

	var removed []string
	for _, f := range old.Features {
		if !currSet[nameKey(f)] {
			removed = append(removed, f)
		}
	}
	if len(removed) == 0 {
		return
	}
	severity := model.SeverityHigh
	if len(removed) > 3 {
		severity = model.SeverityCritical
	}
	d.add(curr.Name, model.ChangeRemovedFeature, severity,
		fmt.Sprintf("%s removed %d feature(s)", curr.Name, len(removed)),
		fmt.Sprintf("No longer listed: %s.", strings.Join(removed, ", ")),
		strings.Join(removed, ", "), "")
}

func (d *detector) diffNews(old, curr *model.EntityProfile) {
	oldTitles := make(map[string]bool, len(old.News))
	for _, n := range old.News {
		oldTitles[nameKey(n.Title)] = true
	}

	for _, n := range curr.News {
		if oldTitles[nameKey(n.Title)] {
			continue
		}
		d.add(curr.Name, model.ChangeNews, classifyNews(n.Title, d.newsRules),
			fmt.Sprintf("%s in the news: %s", curr.Name, n.Title),
			n.Summary, "", n.Title)
		d.events[len(d.events)-1].SourceURL = n.URL
	}
}

func (d *detector) diffSWOT(old, curr *model.EntityProfile) {
	if curr.SWOT == nil {
		return
	}
	var oldThreats, oldOpps []string
	if old.SWOT != nil {
		oldThreats = old.SWOT.Threats
		oldOpps = old.SWOT.Opportunities
	}

	threatSet := stringSet(oldThreats)
	for _, t := range curr.SWOT.Threats {
		if threatSet[nameKey(t)] {
			continue
		}
		d.add(curr.Name, model.ChangeSWOT, model.SeverityMedium,
			fmt.Sprintf("New threat for %s", curr.Name), t, "", t)
	}

	oppSet := stringSet(oldOpps)
	for _, o := range curr.SWOT.Opportunities {
		if oppSet[nameKey(o)] {
			continue
		}
		d.add(curr.Name, model.ChangeSWOT, model.SeverityMedium,
			fmt.Sprintf("New opportunity for %s", curr.Name), o, "", o)
	}
}

func (d *detector) add(competitor string, typ model.ChangeType, severity model.Severity, title, description, oldValue, newValue string) {
	d.events = append(d.events, model.ChangeEvent{
		ID:             uuid.New().String(),
		MonitorID:      d.monitorID,
		CompetitorName: competitor,
		Type:           typ,
		Title:          title,
		Description:    description,
		OldValue:       oldValue,
		NewValue:       newValue,
		Severity:       severity,
		DetectedAt:     d.detectedAt,
	})
}

func nameKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func stringSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[nameKey(s)] = true
	}
	return set
}
