package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/marketintel/internal/discovery"
	"github.com/sells-group/marketintel/internal/model"
	"github.com/sells-group/marketintel/internal/store"
)

type fakeResearcher struct {
	failFor  map[string]error
	panicFor string
}

func (f *fakeResearcher) Research(_ context.Context, url string) (*model.EntityProfile, error) {
	url = model.NormalizeURL(url)
	if url == f.panicFor {
		panic("researcher exploded")
	}
	if err, ok := f.failFor[url]; ok {
		return nil, err
	}
	return &model.EntityProfile{
		Name:     model.CompanyNameFromURL(url),
		URL:      url,
		Features: []string{"Core"},
	}, nil
}

func candidates(urls ...string) []model.Candidate {
	out := make([]model.Candidate, 0, len(urls))
	for _, u := range urls {
		out = append(out, model.Candidate{Name: model.CompanyNameFromURL(u), URL: u})
	}
	return out
}

func newOrchestrator(t *testing.T, r Researcher, d Discoverer, s Synthesizer) (*Orchestrator, store.Store) {
	t.Helper()
	st := store.NewMemory()
	if r == nil {
		r = &fakeResearcher{}
	}
	if d == nil {
		d = &StubDiscoverer{}
	}
	if s == nil {
		s = &StubSynthesizer{}
	}
	return New(st, r, d, s, Config{}), st
}

func waitTerminal(t *testing.T, st store.Store, jobID string) *model.AnalysisJob {
	t.Helper()
	var job *model.AnalysisJob
	require.Eventually(t, func() bool {
		j, err := st.GetJob(context.Background(), jobID)
		if err != nil {
			return false
		}
		job = j
		return j.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestSubmitHappyPath(t *testing.T) {
	disc := &StubDiscoverer{Candidates: candidates("https://alpha.example", "https://beta.example")}
	o, st := newOrchestrator(t, nil, disc, nil)

	job, err := o.Submit(context.Background(), model.JobInput{BaseURL: "acme.com"})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusProcessing, job.Status)
	assert.Equal(t, "https://acme.com", job.Input.BaseURL)

	done := waitTerminal(t, st, job.ID)
	require.Equal(t, model.JobStatusReady, done.Status)
	require.NotNil(t, done.Result)

	require.Len(t, done.Progress, 4)
	for _, step := range done.Progress {
		assert.Equal(t, model.StepDone, step.Status, step.Label)
	}

	require.Len(t, done.Result.Competitors, 2)
	assert.Equal(t, "Alpha", done.Result.Competitors[0].Name)
	assert.Equal(t, "Beta", done.Result.Competitors[1].Name)
	assert.NotEmpty(t, done.Result.Comparison.Narrative)

	hist, err := st.ListHistory(context.Background(), "https://acme.com")
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestBaseAnalysisFailureIsFatal(t *testing.T) {
	r := &fakeResearcher{failFor: map[string]error{
		"https://acme.com": eris.New("site not reachable"),
	}}
	o, st := newOrchestrator(t, r, nil, nil)

	job, err := o.Submit(context.Background(), model.JobInput{BaseURL: "https://acme.com"})
	require.NoError(t, err)

	done := waitTerminal(t, st, job.ID)
	assert.Equal(t, model.JobStatusFailed, done.Status)
	assert.Contains(t, done.Error, "site not reachable")
	assert.Nil(t, done.Result)
}

func TestDiscoveryFailureDegradesToEmptyLandscape(t *testing.T) {
	for name, derr := range map[string]error{
		"no results":  discovery.ErrNoResults,
		"search down": eris.New("search backend unavailable"),
	} {
		t.Run(name, func(t *testing.T) {
			o, st := newOrchestrator(t, nil, &StubDiscoverer{Err: derr}, nil)

			job, err := o.Submit(context.Background(), model.JobInput{BaseURL: "https://acme.com"})
			require.NoError(t, err)

			done := waitTerminal(t, st, job.ID)
			require.Equal(t, model.JobStatusReady, done.Status)
			require.NotNil(t, done.Result)
			assert.Empty(t, done.Result.Competitors)
			assert.Equal(t, "Acme", done.Result.Base.Name)
		})
	}
}

func TestFailedCompetitorIsSkippedAndOrderKept(t *testing.T) {
	disc := &StubDiscoverer{Candidates: candidates(
		"https://alpha.example", "https://broken.example", "https://gamma.example",
	)}
	r := &fakeResearcher{failFor: map[string]error{
		"https://broken.example": eris.New("parse failed"),
	}}
	o, st := newOrchestrator(t, r, disc, nil)

	job, err := o.Submit(context.Background(), model.JobInput{BaseURL: "https://acme.com"})
	require.NoError(t, err)

	done := waitTerminal(t, st, job.ID)
	require.Equal(t, model.JobStatusReady, done.Status)
	require.Len(t, done.Result.Competitors, 2)
	assert.Equal(t, "Alpha", done.Result.Competitors[0].Name)
	assert.Equal(t, "Gamma", done.Result.Competitors[1].Name)
}

func TestSynthesisFailureIsFatal(t *testing.T) {
	o, st := newOrchestrator(t, nil, nil, &StubSynthesizer{Err: eris.New("malformed model output")})

	job, err := o.Submit(context.Background(), model.JobInput{BaseURL: "https://acme.com"})
	require.NoError(t, err)

	done := waitTerminal(t, st, job.ID)
	assert.Equal(t, model.JobStatusFailed, done.Status)
	assert.Contains(t, done.Error, "malformed model output")
}

func TestInvokerPanicFailsJob(t *testing.T) {
	r := &fakeResearcher{panicFor: "https://acme.com"}
	o, st := newOrchestrator(t, r, nil, nil)

	job, err := o.Submit(context.Background(), model.JobInput{BaseURL: "https://acme.com"})
	require.NoError(t, err)

	done := waitTerminal(t, st, job.ID)
	assert.Equal(t, model.JobStatusFailed, done.Status)
	assert.Equal(t, "internal error", done.Error)
}

func TestCandidateListIsCapped(t *testing.T) {
	disc := &StubDiscoverer{Candidates: candidates(
		"https://one.example", "https://two.example", "https://three.example",
	)}
	st := store.NewMemory()
	o := New(st, &fakeResearcher{}, disc, &StubSynthesizer{}, Config{MaxCompetitors: 2})

	report, err := o.RunReport(context.Background(), model.JobInput{BaseURL: "https://acme.com"})
	require.NoError(t, err)
	require.Len(t, report.Competitors, 2)
	assert.Equal(t, "One", report.Competitors[0].Name)
	assert.Equal(t, "Two", report.Competitors[1].Name)
}

func TestRunReportAppendsHistory(t *testing.T) {
	o, st := newOrchestrator(t, nil, nil, nil)

	report, err := o.RunReport(context.Background(), model.JobInput{BaseURL: "acme.com"})
	require.NoError(t, err)
	assert.Equal(t, "Acme", report.Base.Name)

	hist, err := st.ListHistory(context.Background(), "https://acme.com")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "Acme", hist[0].Report.Base.Name)
}

func TestRunReportBaseFailurePropagates(t *testing.T) {
	r := &fakeResearcher{failFor: map[string]error{
		"https://acme.com": eris.New("timeout"),
	}}
	o, st := newOrchestrator(t, r, nil, nil)

	_, err := o.RunReport(context.Background(), model.JobInput{BaseURL: "https://acme.com"})
	require.Error(t, err)

	hist, err := st.ListHistory(context.Background(), "https://acme.com")
	require.NoError(t, err)
	assert.Empty(t, hist)
}
