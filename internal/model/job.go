package model

import "time"

// JobStatus is the lifecycle state of an analysis job. Processing is the
// only non-terminal state; ready and failed are final.
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusReady      JobStatus = "ready"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusReady || s == JobStatusFailed
}

// StepStatus is the state of one progress step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepDone       StepStatus = "done"
)

// rank orders step states so progress can only move forward.
func (s StepStatus) rank() int {
	switch s {
	case StepInProgress:
		return 1
	case StepDone:
		return 2
	default:
		return 0
	}
}

// AtLeast reports whether s is as far along as other.
func (s StepStatus) AtLeast(other StepStatus) bool {
	return s.rank() >= other.rank()
}

// Pipeline stage labels, in execution order. These are the user-facing
// step names returned by the analysis poll endpoint.
const (
	StageAnalyzeBase        = "Analyzing base company"
	StageDiscover           = "Discovering competitors"
	StageAnalyzeCompetitors = "Analyzing competitors"
	StageSynthesize         = "Generating insights"
)

// Stages lists the pipeline stage labels in order.
func Stages() []string {
	return []string{StageAnalyzeBase, StageDiscover, StageAnalyzeCompetitors, StageSynthesize}
}

// ProgressStep is one entry in a job's progress checklist.
type ProgressStep struct {
	Label     string     `json:"step"`
	Status    StepStatus `json:"status"`
	UpdatedAt time.Time  `json:"updated_at,omitempty"`
}

// NewProgress returns the full checklist with every step pending.
func NewProgress() []ProgressStep {
	stages := Stages()
	steps := make([]ProgressStep, len(stages))
	for i, label := range stages {
		steps[i] = ProgressStep{Label: label, Status: StepPending}
	}
	return steps
}

// JobInput is what the caller submitted to start an analysis.
type JobInput struct {
	BaseURL string `json:"base_url"`
	Scope   string `json:"scope,omitempty"`
	Region  string `json:"region,omitempty"`
}

// AnalysisJob tracks one asynchronous pipeline run from submission to a
// terminal state.
type AnalysisJob struct {
	ID        string         `json:"job_id"`
	Input     JobInput       `json:"input"`
	Status    JobStatus      `json:"status"`
	Progress  []ProgressStep `json:"progress"`
	Result    *MarketReport  `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
