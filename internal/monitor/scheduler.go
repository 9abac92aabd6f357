// Package monitor keeps tracked companies under periodic re-analysis and
// records the changes between consecutive reports.
package monitor

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/marketintel/internal/detect"
	"github.com/sells-group/marketintel/internal/model"
	"github.com/sells-group/marketintel/internal/store"
)

// Runner executes one full analysis synchronously. Satisfied by the
// pipeline orchestrator.
type Runner interface {
	RunReport(ctx context.Context, input model.JobInput) (*model.MarketReport, error)
}

// Config tunes the scheduler. Zero values take defaults.
type Config struct {
	DefaultIntervalHours int
	PollInterval         time.Duration
	NewsRules            []detect.KeywordRule
}

func (c Config) withDefaults() Config {
	if c.DefaultIntervalHours <= 0 {
		c.DefaultIntervalHours = 24
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Minute
	}
	return c
}

// Scheduler owns monitor refreshes: it runs the pipeline for each due
// monitor, snapshots the result, and diffs it against the previous run.
type Scheduler struct {
	store  store.Store
	runner Runner
	cfg    Config
	now    func() time.Time
	log    *zap.Logger
}

// New wires a scheduler.
func New(st store.Store, runner Runner, cfg Config) *Scheduler {
	return &Scheduler{
		store:  st,
		runner: runner,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
		log:    zap.L().Named("monitor"),
	}
}

// Create registers a company for monitoring. The company name and check
// interval are derived when absent.
func (s *Scheduler) Create(ctx context.Context, m model.MonitoredCompany) (*model.MonitoredCompany, error) {
	m.BaseURL = model.NormalizeURL(m.BaseURL)
	if m.BaseURL == "" {
		return nil, eris.New("monitor: base_url is required")
	}
	if m.CompanyName == "" {
		m.CompanyName = model.CompanyNameFromURL(m.BaseURL)
	}
	if m.CheckIntervalHours <= 0 {
		m.CheckIntervalHours = s.cfg.DefaultIntervalHours
	}

	created, err := s.store.CreateMonitor(ctx, m)
	if err != nil {
		return nil, eris.Wrap(err, "monitor: create")
	}
	s.log.Info("monitor created",
		zap.String("monitor_id", created.ID),
		zap.String("base_url", created.BaseURL),
		zap.Int("interval_hours", created.CheckIntervalHours),
	)
	return created, nil
}

// Refresh re-analyzes one monitored company now. last_checked advances even
// when the run fails, so a broken site cannot pin the scheduler; the prior
// snapshot stays authoritative until a run succeeds. Returns the change
// events detected against the previous snapshot, if one exists.
func (s *Scheduler) Refresh(ctx context.Context, monitorID string) ([]model.ChangeEvent, error) {
	m, err := s.store.GetMonitor(ctx, monitorID)
	if err != nil {
		return nil, eris.Wrap(err, "monitor: refresh")
	}

	prev, err := s.store.LatestSnapshot(ctx, monitorID)
	if err != nil {
		return nil, eris.Wrap(err, "monitor: load previous snapshot")
	}

	checkedAt := s.now().UTC()
	report, runErr := s.runner.RunReport(ctx, model.JobInput{
		BaseURL: m.BaseURL,
		Scope:   m.Scope,
		Region:  m.Region,
	})
	if terr := s.store.TouchMonitor(ctx, monitorID, checkedAt); terr != nil {
		s.log.Warn("touch monitor", zap.String("monitor_id", monitorID), zap.Error(terr))
	}
	if runErr != nil {
		return nil, eris.Wrapf(runErr, "monitor: refresh %s", m.BaseURL)
	}

	snap := model.ReportSnapshot{TakenAt: checkedAt, Report: *report}
	if err := s.store.SaveSnapshot(ctx, monitorID, snap); err != nil {
		return nil, eris.Wrap(err, "monitor: save snapshot")
	}

	if prev == nil {
		s.log.Info("baseline snapshot recorded", zap.String("monitor_id", monitorID))
		return nil, nil
	}

	var opts []detect.Option
	if len(s.cfg.NewsRules) > 0 {
		opts = append(opts, detect.WithNewsRules(s.cfg.NewsRules))
	}
	events := detect.Detect(&prev.Report, report, monitorID, checkedAt, opts...)
	if len(events) > 0 {
		if err := s.store.AppendChanges(ctx, events); err != nil {
			return nil, eris.Wrap(err, "monitor: record changes")
		}
	}

	s.log.Info("monitor refreshed",
		zap.String("monitor_id", monitorID),
		zap.String("base_url", m.BaseURL),
		zap.Int("changes", len(events)),
	)
	return events, nil
}

// Run polls for due monitors until ctx is cancelled. Refreshes run
// sequentially; one slow or failing monitor delays the rest of the cycle
// but never stops the loop.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("scheduler started", zap.Duration("poll_interval", s.cfg.PollInterval))

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	monitors, err := s.store.ListMonitors(ctx)
	if err != nil {
		s.log.Error("list monitors", zap.Error(err))
		return
	}

	now := s.now().UTC()
	for i := range monitors {
		m := &monitors[i]
		if !m.Due(now) {
			continue
		}
		if _, err := s.Refresh(ctx, m.ID); err != nil {
			s.log.Warn("scheduled refresh failed",
				zap.String("monitor_id", m.ID),
				zap.String("base_url", m.BaseURL),
				zap.Error(err),
			)
		}
		if ctx.Err() != nil {
			return
		}
	}
}
