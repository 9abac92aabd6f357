package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/marketintel/internal/model"
	"github.com/sells-group/marketintel/internal/store"
)

type fakeRunner struct {
	reports []*model.MarketReport
	err     error
	calls   int
}

func (f *fakeRunner) RunReport(_ context.Context, _ model.JobInput) (*model.MarketReport, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	r := f.reports[0]
	if len(f.reports) > 1 {
		f.reports = f.reports[1:]
	}
	return r, nil
}

func baseReport(competitors ...model.EntityProfile) *model.MarketReport {
	return &model.MarketReport{
		Base:        model.EntityProfile{Name: "Acme", URL: "https://acme.com"},
		Competitors: competitors,
	}
}

func frozen(s *Scheduler, at time.Time) *Scheduler {
	s.now = func() time.Time { return at }
	return s
}

var t0 = time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

func TestCreateDerivesDefaults(t *testing.T) {
	st := store.NewMemory()
	s := New(st, &fakeRunner{}, Config{DefaultIntervalHours: 12})

	m, err := s.Create(context.Background(), model.MonitoredCompany{BaseURL: "rival.com/"})
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "https://rival.com", m.BaseURL)
	assert.Equal(t, "Rival", m.CompanyName)
	assert.Equal(t, 12, m.CheckIntervalHours)
}

func TestCreateRequiresURL(t *testing.T) {
	s := New(store.NewMemory(), &fakeRunner{}, Config{})
	_, err := s.Create(context.Background(), model.MonitoredCompany{})
	assert.Error(t, err)
}

func TestFirstRefreshRecordsBaselineWithoutEvents(t *testing.T) {
	st := store.NewMemory()
	runner := &fakeRunner{reports: []*model.MarketReport{baseReport()}}
	s := frozen(New(st, runner, Config{}), t0)

	m, err := s.Create(context.Background(), model.MonitoredCompany{BaseURL: "https://acme.com"})
	require.NoError(t, err)

	events, err := s.Refresh(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Empty(t, events)

	snap, err := st.LatestSnapshot(context.Background(), m.ID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, t0, snap.TakenAt)

	got, err := st.GetMonitor(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, t0, got.LastChecked)
}

func TestSecondRefreshDetectsChanges(t *testing.T) {
	st := store.NewMemory()
	runner := &fakeRunner{reports: []*model.MarketReport{
		baseReport(),
		baseReport(model.EntityProfile{Name: "Upstart", URL: "https://upstart.io"}),
	}}
	s := frozen(New(st, runner, Config{}), t0)

	m, err := s.Create(context.Background(), model.MonitoredCompany{BaseURL: "https://acme.com"})
	require.NoError(t, err)

	_, err = s.Refresh(context.Background(), m.ID)
	require.NoError(t, err)

	events, err := s.Refresh(context.Background(), m.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.ChangeNewCompetitor, events[0].Type)
	assert.Equal(t, m.ID, events[0].MonitorID)

	stored, err := st.ListChanges(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestFailedRefreshAdvancesLastCheckedAndKeepsSnapshot(t *testing.T) {
	st := store.NewMemory()
	runner := &fakeRunner{reports: []*model.MarketReport{baseReport()}}
	s := frozen(New(st, runner, Config{}), t0)

	m, err := s.Create(context.Background(), model.MonitoredCompany{BaseURL: "https://acme.com"})
	require.NoError(t, err)
	_, err = s.Refresh(context.Background(), m.ID)
	require.NoError(t, err)

	later := t0.Add(time.Hour)
	s.now = func() time.Time { return later }
	runner.err = eris.New("site unreachable")

	_, err = s.Refresh(context.Background(), m.ID)
	require.Error(t, err)

	got, err := st.GetMonitor(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, later, got.LastChecked)

	snap, err := st.LatestSnapshot(context.Background(), m.ID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, t0, snap.TakenAt)
}

func TestRefreshUnknownMonitor(t *testing.T) {
	s := New(store.NewMemory(), &fakeRunner{}, Config{})
	_, err := s.Refresh(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSweepRefreshesOnlyDueMonitors(t *testing.T) {
	st := store.NewMemory()
	runner := &fakeRunner{reports: []*model.MarketReport{baseReport()}}
	s := frozen(New(st, runner, Config{DefaultIntervalHours: 24}), t0)

	due, err := s.Create(context.Background(), model.MonitoredCompany{BaseURL: "https://due.com"})
	require.NoError(t, err)

	fresh, err := s.Create(context.Background(), model.MonitoredCompany{BaseURL: "https://fresh.com"})
	require.NoError(t, err)
	require.NoError(t, st.TouchMonitor(context.Background(), fresh.ID, t0.Add(-time.Hour)))

	s.sweep(context.Background())
	assert.Equal(t, 1, runner.calls)

	got, err := st.GetMonitor(context.Background(), due.ID)
	require.NoError(t, err)
	assert.Equal(t, t0, got.LastChecked)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	s := New(store.NewMemory(), &fakeRunner{}, Config{PollInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
