// Package store persists analysis jobs, monitors and their history behind
// a single Store interface with in-memory and sqlite implementations.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/marketintel/internal/model"
)

// ErrNotFound is returned when a job or monitor id does not exist.
var ErrNotFound = eris.New("store: not found")

// ErrTerminal is returned on an attempt to transition a job that has
// already reached ready or failed.
var ErrTerminal = eris.New("store: job already in terminal state")

// Store is the persistence boundary for the engine. Implementations must
// be safe for concurrent use; job mutation is only ever performed by the
// single pipeline goroutine that owns the job.
type Store interface {
	Migrate(ctx context.Context) error
	Close() error

	// CreateJob registers a new analysis job in the processing state with
	// all progress steps pending, and assigns its id.
	CreateJob(ctx context.Context, input model.JobInput) (*model.AnalysisJob, error)

	// GetJob returns a job by id. ErrNotFound for unknown ids.
	GetJob(ctx context.Context, id string) (*model.AnalysisJob, error)

	// SetJobStep moves one progress step forward. A step never regresses:
	// updates that would move a step backward are ignored.
	SetJobStep(ctx context.Context, id, stage string, status model.StepStatus) error

	// CompleteJob transitions processing → ready, attaching the report and
	// marking every step done. ErrTerminal if the job already finished.
	CompleteJob(ctx context.Context, id string, report *model.MarketReport) error

	// FailJob transitions processing → failed with a human-readable
	// message. ErrTerminal if the job already finished.
	FailJob(ctx context.Context, id, message string) error

	// EvictFinishedBefore removes terminal jobs last updated at or before
	// cutoff and returns how many were removed.
	EvictFinishedBefore(ctx context.Context, cutoff time.Time) (int, error)

	// AppendHistory records a finished report under its normalized base URL.
	AppendHistory(ctx context.Context, baseURL string, snap model.ReportSnapshot) error

	// ListHistory returns the recorded reports for a base URL, oldest first.
	ListHistory(ctx context.Context, baseURL string) ([]model.ReportSnapshot, error)

	// CreateMonitor stores a monitored company, assigning id and created_at.
	CreateMonitor(ctx context.Context, m model.MonitoredCompany) (*model.MonitoredCompany, error)

	// GetMonitor returns a monitor by id. ErrNotFound for unknown ids.
	GetMonitor(ctx context.Context, id string) (*model.MonitoredCompany, error)

	// ListMonitors returns all monitors, oldest first.
	ListMonitors(ctx context.Context) ([]model.MonitoredCompany, error)

	// TouchMonitor advances a monitor's last_checked timestamp.
	TouchMonitor(ctx context.Context, id string, checkedAt time.Time) error

	// SaveSnapshot records a monitor's newest report snapshot.
	SaveSnapshot(ctx context.Context, monitorID string, snap model.ReportSnapshot) error

	// LatestSnapshot returns the most recent snapshot, or nil when the
	// monitor has never completed a refresh.
	LatestSnapshot(ctx context.Context, monitorID string) (*model.ReportSnapshot, error)

	// AppendChanges records detected change events.
	AppendChanges(ctx context.Context, events []model.ChangeEvent) error

	// ListChanges returns a monitor's change events, newest first.
	ListChanges(ctx context.Context, monitorID string) ([]model.ChangeEvent, error)
}
