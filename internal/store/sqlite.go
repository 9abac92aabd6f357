package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/marketintel/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

var _ Store = (*SQLiteStore)(nil)

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	input      TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'processing',
	progress   TEXT NOT NULL,
	result     TEXT,
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS history (
	id       TEXT PRIMARY KEY,
	base_url TEXT NOT NULL,
	taken_at DATETIME NOT NULL,
	report   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS monitors (
	id                   TEXT PRIMARY KEY,
	base_url             TEXT NOT NULL,
	company_name         TEXT NOT NULL,
	scope                TEXT NOT NULL DEFAULT '',
	region               TEXT NOT NULL DEFAULT '',
	check_interval_hours INTEGER NOT NULL,
	created_at           DATETIME NOT NULL,
	last_checked         DATETIME
);

CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	monitor_id TEXT NOT NULL REFERENCES monitors(id),
	taken_at   DATETIME NOT NULL,
	report     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS changes (
	id              TEXT PRIMARY KEY,
	monitor_id      TEXT NOT NULL REFERENCES monitors(id),
	competitor_name TEXT NOT NULL,
	type            TEXT NOT NULL,
	title           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	old_value       TEXT NOT NULL DEFAULT '',
	new_value       TEXT NOT NULL DEFAULT '',
	severity        TEXT NOT NULL,
	source_url      TEXT NOT NULL DEFAULT '',
	detected_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_history_base_url ON history(base_url);
CREATE INDEX IF NOT EXISTS idx_snapshots_monitor_id ON snapshots(monitor_id);
CREATE INDEX IF NOT EXISTS idx_changes_monitor_id ON changes(monitor_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateJob(ctx context.Context, input model.JobInput) (*model.AnalysisJob, error) {
	job := &model.AnalysisJob{
		ID:        uuid.New().String(),
		Input:     input,
		Status:    model.JobStatusProcessing,
		Progress:  model.NewProgress(),
		CreatedAt: time.Now().UTC(),
	}
	job.UpdatedAt = job.CreatedAt

	inputJSON, err := json.Marshal(input)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal input")
	}
	progressJSON, err := json.Marshal(job.Progress)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal progress")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, input, status, progress, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID, string(inputJSON), string(job.Status), string(progressJSON), job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert job")
	}
	return job, nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.AnalysisJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, input, status, progress, result, error, created_at, updated_at FROM jobs WHERE id = ?`,
		id,
	)
	return scanJob(row)
}

func (s *SQLiteStore) SetJobStep(ctx context.Context, id, stage string, status model.StepStatus) error {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	changed := false
	for i := range job.Progress {
		if job.Progress[i].Label != stage || job.Progress[i].Status.AtLeast(status) {
			continue
		}
		job.Progress[i].Status = status
		job.Progress[i].UpdatedAt = now
		changed = true
	}
	if !changed {
		return nil
	}

	progressJSON, err := json.Marshal(job.Progress)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal progress")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET progress = ?, updated_at = ? WHERE id = ?`,
		string(progressJSON), now, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job step %s", id)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) CompleteJob(ctx context.Context, id string, report *model.MarketReport) error {
	resultJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}

	job, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for i := range job.Progress {
		if !job.Progress[i].Status.AtLeast(model.StepDone) {
			job.Progress[i].Status = model.StepDone
			job.Progress[i].UpdatedAt = now
		}
	}
	progressJSON, err := json.Marshal(job.Progress)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal progress")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, result = ?, progress = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(model.JobStatusReady), string(resultJSON), string(progressJSON), now, id, string(model.JobStatusProcessing),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete job %s", id)
	}
	return s.guardTransition(ctx, res, id)
}

func (s *SQLiteStore) FailJob(ctx context.Context, id, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(model.JobStatusFailed), message, time.Now().UTC(), id, string(model.JobStatusProcessing),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail job %s", id)
	}
	return s.guardTransition(ctx, res, id)
}

// guardTransition distinguishes a missing job from one already terminal
// when a guarded UPDATE touched no rows.
func (s *SQLiteStore) guardTransition(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n > 0 {
		return nil
	}
	if _, err := s.GetJob(ctx, id); err != nil {
		return err
	}
	return ErrTerminal
}

func (s *SQLiteStore) EvictFinishedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE status IN (?, ?) AND updated_at <= ?`,
		string(model.JobStatusReady), string(model.JobStatusFailed), cutoff.UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: evict finished jobs")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) AppendHistory(ctx context.Context, baseURL string, snap model.ReportSnapshot) error {
	reportJSON, err := json.Marshal(snap.Report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO history (id, base_url, taken_at, report) VALUES (?, ?, ?, ?)`,
		uuid.New().String(), model.NormalizeURL(baseURL), snap.TakenAt.UTC(), string(reportJSON),
	)
	return eris.Wrap(err, "sqlite: append history")
}

func (s *SQLiteStore) ListHistory(ctx context.Context, baseURL string) ([]model.ReportSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT taken_at, report FROM history WHERE base_url = ? ORDER BY taken_at ASC`,
		model.NormalizeURL(baseURL),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list history")
	}
	defer rows.Close()

	var snaps []model.ReportSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, *snap)
	}
	return snaps, eris.Wrap(rows.Err(), "sqlite: list history iterate")
}

func (s *SQLiteStore) CreateMonitor(ctx context.Context, m model.MonitoredCompany) (*model.MonitoredCompany, error) {
	m.ID = uuid.New().String()
	m.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO monitors (id, base_url, company_name, scope, region, check_interval_hours, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.BaseURL, m.CompanyName, m.Scope, m.Region, m.CheckIntervalHours, m.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert monitor")
	}
	return &m, nil
}

func (s *SQLiteStore) GetMonitor(ctx context.Context, id string) (*model.MonitoredCompany, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, base_url, company_name, scope, region, check_interval_hours, created_at, last_checked
		 FROM monitors WHERE id = ?`,
		id,
	)
	return scanMonitor(row)
}

func (s *SQLiteStore) ListMonitors(ctx context.Context) ([]model.MonitoredCompany, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, base_url, company_name, scope, region, check_interval_hours, created_at, last_checked
		 FROM monitors ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list monitors")
	}
	defer rows.Close()

	var monitors []model.MonitoredCompany
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, err
		}
		monitors = append(monitors, *m)
	}
	return monitors, eris.Wrap(rows.Err(), "sqlite: list monitors iterate")
}

func (s *SQLiteStore) TouchMonitor(ctx context.Context, id string, checkedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE monitors SET last_checked = ? WHERE id = ?`,
		checkedAt.UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: touch monitor %s", id)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, monitorID string, snap model.ReportSnapshot) error {
	if _, err := s.GetMonitor(ctx, monitorID); err != nil {
		return err
	}
	reportJSON, err := json.Marshal(snap.Report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, monitor_id, taken_at, report) VALUES (?, ?, ?, ?)`,
		uuid.New().String(), monitorID, snap.TakenAt.UTC(), string(reportJSON),
	)
	return eris.Wrap(err, "sqlite: save snapshot")
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context, monitorID string) (*model.ReportSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT taken_at, report FROM snapshots WHERE monitor_id = ? ORDER BY taken_at DESC LIMIT 1`,
		monitorID,
	)
	snap, err := scanSnapshot(row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return snap, err
}

func (s *SQLiteStore) AppendChanges(ctx context.Context, events []model.ChangeEvent) error {
	for _, e := range events {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO changes (id, monitor_id, competitor_name, type, title, description, old_value, new_value, severity, source_url, detected_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.MonitorID, e.CompetitorName, string(e.Type), e.Title, e.Description,
			e.OldValue, e.NewValue, string(e.Severity), e.SourceURL, e.DetectedAt.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert change %s", e.ID)
		}
	}
	return nil
}

func (s *SQLiteStore) ListChanges(ctx context.Context, monitorID string) ([]model.ChangeEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, monitor_id, competitor_name, type, title, description, old_value, new_value, severity, source_url, detected_at
		 FROM changes WHERE monitor_id = ? ORDER BY detected_at DESC, rowid ASC`,
		monitorID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list changes")
	}
	defer rows.Close()

	var events []model.ChangeEvent
	for rows.Next() {
		var e model.ChangeEvent
		if err := rows.Scan(&e.ID, &e.MonitorID, &e.CompetitorName, &e.Type, &e.Title,
			&e.Description, &e.OldValue, &e.NewValue, &e.Severity, &e.SourceURL, &e.DetectedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan change")
		}
		events = append(events, e)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: list changes iterate")
}

// helpers

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanJob(row scannable) (*model.AnalysisJob, error) {
	var j model.AnalysisJob
	var inputJSON, progressJSON string
	var resultJSON sql.NullString

	err := row.Scan(&j.ID, &inputJSON, &j.Status, &progressJSON, &resultJSON, &j.Error, &j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan job")
	}

	if err := json.Unmarshal([]byte(inputJSON), &j.Input); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal input")
	}
	if err := json.Unmarshal([]byte(progressJSON), &j.Progress); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal progress")
	}
	if resultJSON.Valid {
		j.Result = &model.MarketReport{}
		if err := json.Unmarshal([]byte(resultJSON.String), j.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &j, nil
}

func scanMonitor(row scannable) (*model.MonitoredCompany, error) {
	var m model.MonitoredCompany
	var lastChecked sql.NullTime

	err := row.Scan(&m.ID, &m.BaseURL, &m.CompanyName, &m.Scope, &m.Region,
		&m.CheckIntervalHours, &m.CreatedAt, &lastChecked)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan monitor")
	}
	if lastChecked.Valid {
		m.LastChecked = lastChecked.Time
	}
	return &m, nil
}

func scanSnapshot(row scannable) (*model.ReportSnapshot, error) {
	var snap model.ReportSnapshot
	var reportJSON string

	err := row.Scan(&snap.TakenAt, &reportJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan snapshot")
	}
	if err := json.Unmarshal([]byte(reportJSON), &snap.Report); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal report")
	}
	return &snap, nil
}
