package model

import "time"

// PricingTier is one plan on a company's pricing page. Price is kept as
// free text ("$49/mo", "Custom", "Contact sales") because vendors rarely
// publish machine-readable prices.
type PricingTier struct {
	Name     string   `json:"name"`
	Price    string   `json:"price,omitempty"`
	Features []string `json:"features,omitempty"`
}

// NewsItem is a recent announcement or press mention.
type NewsItem struct {
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`
	URL     string `json:"url,omitempty"`
	Date    string `json:"date,omitempty"`
}

// SWOTAnalysis holds the four classic quadrants as free-text entries.
type SWOTAnalysis struct {
	Strengths     []string `json:"strengths,omitempty"`
	Weaknesses    []string `json:"weaknesses,omitempty"`
	Opportunities []string `json:"opportunities,omitempty"`
	Threats       []string `json:"threats,omitempty"`
}

// SourceAttribution records where a profile's data came from.
type SourceAttribution struct {
	URL       string    `json:"url"`
	Kind      string    `json:"kind,omitempty"`
	FetchedAt time.Time `json:"fetched_at,omitempty"`
}

// EntityProfile is the structured snapshot of one company produced by the
// research invoker. Any section may be empty when the source pages did not
// expose it.
type EntityProfile struct {
	Name         string              `json:"name"`
	URL          string              `json:"url"`
	Description  string              `json:"description,omitempty"`
	PricingTiers []PricingTier       `json:"pricing_tiers,omitempty"`
	Features     []string            `json:"feature_list,omitempty"`
	News         []NewsItem          `json:"news,omitempty"`
	SWOT         *SWOTAnalysis       `json:"swot,omitempty"`
	Sources      []SourceAttribution `json:"sources,omitempty"`
}

// Candidate is a competitor proposed by the discovery invoker before its
// profile has been researched.
type Candidate struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Reason string `json:"reason,omitempty"`
}
