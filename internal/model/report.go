package model

// Confidence grades how well-supported a synthesized metric is.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Metric is a synthesized estimate with its supporting reasoning. Value is
// free text ("~35%", "N/A") so the model can express uncertainty.
type Metric struct {
	Value      string     `json:"value"`
	Reasoning  string     `json:"reasoning,omitempty"`
	Confidence Confidence `json:"confidence,omitempty"`
	InputsUsed []string   `json:"inputs_used,omitempty"`
}

// MarketSegment describes one slice of the market and who leads it.
type MarketSegment struct {
	Name      string `json:"name"`
	Leader    string `json:"leader,omitempty"`
	Share     string `json:"share,omitempty"`
	Growth    string `json:"growth,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
}

// Recommendation is a single suggested action with its rationale.
type Recommendation struct {
	Text      string `json:"text"`
	Reasoning string `json:"reasoning,omitempty"`
}

// StrategicRecommendations groups suggested actions by horizon.
type StrategicRecommendations struct {
	ImmediateActions  []Recommendation `json:"immediate_actions,omitempty"`
	ProductPriorities []Recommendation `json:"product_priorities,omitempty"`
	MarketFocus       []Recommendation `json:"market_focus,omitempty"`
}

// ComparisonSummary is the synthesis invoker's output: a narrative plus
// per-metric estimates, each carrying reasoning, a confidence grade and the
// profile fields it was derived from.
type ComparisonSummary struct {
	Narrative           string                    `json:"narrative_text"`
	WinRate             Metric                    `json:"win_rate"`
	MarketShareEstimate Metric                    `json:"market_share_estimate"`
	PricingAdvantage    Metric                    `json:"pricing_advantage"`
	MarketSegments      []MarketSegment           `json:"market_segments,omitempty"`
	Recommendations     *StrategicRecommendations `json:"strategic_recommendations,omitempty"`
	SourcesUsed         []string                  `json:"sources_used,omitempty"`
	ConfidenceNote      string                    `json:"confidence_note,omitempty"`
}

// MarketReport is the complete output of one pipeline run.
type MarketReport struct {
	Base        EntityProfile     `json:"base"`
	Competitors []EntityProfile   `json:"competitors"`
	Comparison  ComparisonSummary `json:"comparison"`
}

// CompetitorNames returns the competitor names in report order.
func (r *MarketReport) CompetitorNames() []string {
	names := make([]string, 0, len(r.Competitors))
	for _, c := range r.Competitors {
		names = append(names, c.Name)
	}
	return names
}
