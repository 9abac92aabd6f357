package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/marketintel/internal/model"
)

// MemoryStore is the reference in-memory Store. All data is lost on
// process exit; suitable for the default single-node deployment.
type MemoryStore struct {
	mu        sync.RWMutex
	jobs      map[string]*model.AnalysisJob
	history   map[string][]model.ReportSnapshot
	monitors  map[string]*model.MonitoredCompany
	snapshots map[string][]model.ReportSnapshot
	changes   map[string][]model.ChangeEvent
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		jobs:      make(map[string]*model.AnalysisJob),
		history:   make(map[string][]model.ReportSnapshot),
		monitors:  make(map[string]*model.MonitoredCompany),
		snapshots: make(map[string][]model.ReportSnapshot),
		changes:   make(map[string][]model.ChangeEvent),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Migrate(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) CreateJob(_ context.Context, input model.JobInput) (*model.AnalysisJob, error) {
	now := time.Now().UTC()
	job := &model.AnalysisJob{
		ID:        uuid.New().String(),
		Input:     input,
		Status:    model.JobStatusProcessing,
		Progress:  model.NewProgress(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	return cloneJob(job), nil
}

func (s *MemoryStore) GetJob(_ context.Context, id string) (*model.AnalysisJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(job), nil
}

func (s *MemoryStore) SetJobStep(_ context.Context, id, stage string, status model.StepStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}

	now := time.Now().UTC()
	for i := range job.Progress {
		if job.Progress[i].Label != stage {
			continue
		}
		if job.Progress[i].Status.AtLeast(status) {
			return nil
		}
		job.Progress[i].Status = status
		job.Progress[i].UpdatedAt = now
		job.UpdatedAt = now
		return nil
	}
	return nil
}

func (s *MemoryStore) CompleteJob(_ context.Context, id string, report *model.MarketReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if job.Status.Terminal() {
		return ErrTerminal
	}

	now := time.Now().UTC()
	job.Status = model.JobStatusReady
	job.Result = report
	for i := range job.Progress {
		if !job.Progress[i].Status.AtLeast(model.StepDone) {
			job.Progress[i].Status = model.StepDone
			job.Progress[i].UpdatedAt = now
		}
	}
	job.UpdatedAt = now
	return nil
}

func (s *MemoryStore) FailJob(_ context.Context, id, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if job.Status.Terminal() {
		return ErrTerminal
	}

	job.Status = model.JobStatusFailed
	job.Error = message
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) EvictFinishedBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted int
	for id, job := range s.jobs {
		if job.Status.Terminal() && !job.UpdatedAt.After(cutoff) {
			delete(s.jobs, id)
			evicted++
		}
	}
	return evicted, nil
}

func (s *MemoryStore) AppendHistory(_ context.Context, baseURL string, snap model.ReportSnapshot) error {
	key := model.NormalizeURL(baseURL)

	s.mu.Lock()
	s.history[key] = append(s.history[key], snap)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ListHistory(_ context.Context, baseURL string) ([]model.ReportSnapshot, error) {
	key := model.NormalizeURL(baseURL)

	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.ReportSnapshot(nil), s.history[key]...), nil
}

func (s *MemoryStore) CreateMonitor(_ context.Context, m model.MonitoredCompany) (*model.MonitoredCompany, error) {
	m.ID = uuid.New().String()
	m.CreatedAt = time.Now().UTC()

	s.mu.Lock()
	s.monitors[m.ID] = &m
	s.mu.Unlock()

	out := m
	return &out, nil
}

func (s *MemoryStore) GetMonitor(_ context.Context, id string) (*model.MonitoredCompany, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.monitors[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *m
	return &out, nil
}

func (s *MemoryStore) ListMonitors(_ context.Context) ([]model.MonitoredCompany, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.MonitoredCompany, 0, len(s.monitors))
	for _, m := range s.monitors {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) TouchMonitor(_ context.Context, id string, checkedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.monitors[id]
	if !ok {
		return ErrNotFound
	}
	m.LastChecked = checkedAt.UTC()
	return nil
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, monitorID string, snap model.ReportSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.monitors[monitorID]; !ok {
		return ErrNotFound
	}
	s.snapshots[monitorID] = append(s.snapshots[monitorID], snap)
	return nil
}

func (s *MemoryStore) LatestSnapshot(_ context.Context, monitorID string) (*model.ReportSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := s.snapshots[monitorID]
	if len(snaps) == 0 {
		return nil, nil
	}
	out := snaps[len(snaps)-1]
	return &out, nil
}

func (s *MemoryStore) AppendChanges(_ context.Context, events []model.ChangeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		s.changes[e.MonitorID] = append(s.changes[e.MonitorID], e)
	}
	return nil
}

func (s *MemoryStore) ListChanges(_ context.Context, monitorID string) ([]model.ChangeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := append([]model.ChangeEvent(nil), s.changes[monitorID]...)
	// Newest first; stable so same-instant events keep insertion order.
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].DetectedAt.After(events[j].DetectedAt)
	})
	return events, nil
}

func cloneJob(job *model.AnalysisJob) *model.AnalysisJob {
	out := *job
	out.Progress = append([]model.ProgressStep(nil), job.Progress...)
	return &out
}
