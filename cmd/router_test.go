package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/marketintel/internal/model"
	"github.com/sells-group/marketintel/internal/monitor"
	"github.com/sells-group/marketintel/internal/pipeline"
	"github.com/sells-group/marketintel/internal/store"
)

func testServer(t *testing.T) (*httptest.Server, *engineEnv) {
	t.Helper()

	st := store.NewMemory()
	orch := pipeline.New(st,
		&pipeline.StubResearcher{},
		&pipeline.StubDiscoverer{},
		&pipeline.StubSynthesizer{},
		pipeline.Config{},
	)
	env := &engineEnv{
		Store:        st,
		Orchestrator: orch,
		Scheduler:    monitor.New(st, orch, monitor.Config{}),
	}

	srv := httptest.NewServer(newRouter(env, nil))
	t.Cleanup(srv.Close)
	return srv, env
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func submitAndWait(t *testing.T, srv *httptest.Server, url string) string {
	t.Helper()

	resp := postJSON(t, srv.URL+"/init-analysis", map[string]string{"url": url})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	accepted := decode[struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}](t, resp)
	require.NotEmpty(t, accepted.JobID)
	assert.Equal(t, "processing", accepted.Status)

	require.Eventually(t, func() bool {
		r, err := http.Get(srv.URL + "/analysis/" + accepted.JobID)
		if err != nil {
			return false
		}
		defer r.Body.Close()
		var job model.AnalysisJob
		if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
			return false
		}
		return job.Status.Terminal()
	}, 5*time.Second, 20*time.Millisecond)

	return accepted.JobID
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestInitAnalysisValidation(t *testing.T) {
	srv, _ := testServer(t)

	resp := postJSON(t, srv.URL+"/init-analysis", map[string]string{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAnalysisLifecycle(t *testing.T) {
	srv, _ := testServer(t)

	jobID := submitAndWait(t, srv, "acme.com")

	resp, err := http.Get(srv.URL + "/analysis/" + jobID)
	require.NoError(t, err)
	job := decode[model.AnalysisJob](t, resp)

	assert.Equal(t, model.JobStatusReady, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, "https://acme.com", job.Input.BaseURL)
	assert.Len(t, job.Result.Competitors, 2)
	for _, step := range job.Progress {
		assert.Equal(t, model.StepDone, step.Status)
	}
}

func TestAnalysisNotFound(t *testing.T) {
	srv, _ := testServer(t)

	resp, err := http.Get(srv.URL + "/analysis/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHistoryAndDiff(t *testing.T) {
	srv, _ := testServer(t)

	jobID := submitAndWait(t, srv, "acme.com")

	resp, err := http.Get(srv.URL + "/history/" + jobID)
	require.NoError(t, err)
	hist := decode[struct {
		BaseURL  string                 `json:"base_url"`
		Analyses []model.ReportSnapshot `json:"analyses"`
	}](t, resp)
	assert.Equal(t, "https://acme.com", hist.BaseURL)
	assert.Len(t, hist.Analyses, 1)

	// One analysis is not enough to diff.
	resp, err = http.Get(srv.URL + "/history/" + jobID + "/diff")
	require.NoError(t, err)
	diff := decode[struct {
		Changes []model.ChangeEvent `json:"changes"`
	}](t, resp)
	assert.Empty(t, diff.Changes)

	// A second run of the same stubbed pipeline yields no changes either.
	submitAndWait(t, srv, "acme.com")
	resp, err = http.Get(srv.URL + "/history/" + jobID + "/diff")
	require.NoError(t, err)
	diff = decode[struct {
		Changes []model.ChangeEvent `json:"changes"`
	}](t, resp)
	assert.Empty(t, diff.Changes)
}

func TestMonitorLifecycle(t *testing.T) {
	srv, _ := testServer(t)

	resp := postJSON(t, srv.URL+"/monitor", map[string]any{"url": "rival.com", "check_interval_hours": 6})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	m := decode[model.MonitoredCompany](t, resp)
	assert.Equal(t, "https://rival.com", m.BaseURL)
	assert.Equal(t, "Rival", m.CompanyName)
	assert.Equal(t, 6, m.CheckIntervalHours)

	resp, err := http.Get(srv.URL + "/monitors")
	require.NoError(t, err)
	list := decode[struct {
		Monitors []model.MonitoredCompany `json:"monitors"`
	}](t, resp)
	require.Len(t, list.Monitors, 1)

	// No report before the first refresh.
	resp, err = http.Get(srv.URL + "/monitor/" + m.ID + "/report")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Baseline refresh: snapshot saved, no changes yet.
	resp = postJSON(t, srv.URL+"/monitor/"+m.ID+"/refresh", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	refreshed := decode[struct {
		Changes []model.ChangeEvent `json:"changes"`
	}](t, resp)
	assert.Empty(t, refreshed.Changes)

	resp, err = http.Get(srv.URL + "/monitor/" + m.ID + "/report")
	require.NoError(t, err)
	snap := decode[model.ReportSnapshot](t, resp)
	assert.Equal(t, "Rival", snap.Report.Base.Name)

	resp, err = http.Get(srv.URL + "/monitor/" + m.ID + "/changes")
	require.NoError(t, err)
	changes := decode[struct {
		Changes []model.ChangeEvent `json:"changes"`
	}](t, resp)
	assert.Empty(t, changes.Changes)
}

func TestMonitorValidation(t *testing.T) {
	srv, _ := testServer(t)

	resp := postJSON(t, srv.URL+"/monitor", map[string]string{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMonitorNotFound(t *testing.T) {
	srv, _ := testServer(t)

	for _, path := range []string{"/monitor/nope/changes", "/monitor/nope/report"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}
