package model

import "time"

// MonitoredCompany is a company kept under periodic re-analysis.
type MonitoredCompany struct {
	ID                 string    `json:"id"`
	BaseURL            string    `json:"base_url"`
	CompanyName        string    `json:"company_name"`
	Scope              string    `json:"scope,omitempty"`
	Region             string    `json:"region,omitempty"`
	CheckIntervalHours int       `json:"check_interval_hours"`
	CreatedAt          time.Time `json:"created_at"`
	LastChecked        time.Time `json:"last_checked,omitempty"`
}

// Due reports whether the monitor's interval has elapsed since the last
// check. A monitor that has never been checked is always due.
func (m *MonitoredCompany) Due(now time.Time) bool {
	if m.LastChecked.IsZero() {
		return true
	}
	return now.Sub(m.LastChecked) >= time.Duration(m.CheckIntervalHours)*time.Hour
}

// ChangeType classifies a detected change between two report snapshots.
type ChangeType string

const (
	ChangeNewCompetitor  ChangeType = "new_competitor"
	ChangePricing        ChangeType = "pricing_change"
	ChangeNewFeature     ChangeType = "new_feature"
	ChangeRemovedFeature ChangeType = "removed_feature"
	ChangeNews           ChangeType = "news"
	ChangeSWOT           ChangeType = "swot_change"
)

// Severity grades how urgent a change event is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// ChangeEvent is one detected difference between consecutive snapshots of
// a monitored company's report.
type ChangeEvent struct {
	ID             string     `json:"id"`
	MonitorID      string     `json:"monitor_id"`
	CompetitorName string     `json:"competitor_name"`
	Type           ChangeType `json:"type"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	OldValue       string     `json:"old_value,omitempty"`
	NewValue       string     `json:"new_value,omitempty"`
	Severity       Severity   `json:"severity"`
	SourceURL      string     `json:"source_url,omitempty"`
	DetectedAt     time.Time  `json:"detected_at"`
}

// ReportSnapshot is a report captured at a point in time, kept for diffing
// and history.
type ReportSnapshot struct {
	TakenAt time.Time    `json:"taken_at"`
	Report  MarketReport `json:"report"`
}
