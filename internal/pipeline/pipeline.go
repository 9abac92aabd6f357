// Package pipeline orchestrates the four analysis stages behind every
// report: analyze the base company, discover competitors, analyze the
// competitors in parallel, and synthesize the comparison.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/marketintel/internal/discovery"
	"github.com/sells-group/marketintel/internal/model"
	"github.com/sells-group/marketintel/internal/store"
)

// Researcher produces a structured profile for one company URL.
type Researcher interface {
	Research(ctx context.Context, url string) (*model.EntityProfile, error)
}

// Discoverer proposes validated competitor candidates for a base profile.
type Discoverer interface {
	Discover(ctx context.Context, base *model.EntityProfile, scope, region string) ([]model.Candidate, error)
}

// Synthesizer compares the base against its competitors.
type Synthesizer interface {
	Synthesize(ctx context.Context, base *model.EntityProfile, competitors []model.EntityProfile, scope, region string) (*model.ComparisonSummary, error)
}

// Config bounds each stage. Zero values take defaults.
type Config struct {
	ResearchTimeout  time.Duration
	DiscoveryTimeout time.Duration
	SynthesisTimeout time.Duration
	MaxCompetitors   int
	MaxParallel      int
}

func (c Config) withDefaults() Config {
	if c.ResearchTimeout <= 0 {
		c.ResearchTimeout = 90 * time.Second
	}
	if c.DiscoveryTimeout <= 0 {
		c.DiscoveryTimeout = 60 * time.Second
	}
	if c.SynthesisTimeout <= 0 {
		c.SynthesisTimeout = 120 * time.Second
	}
	if c.MaxCompetitors <= 0 {
		c.MaxCompetitors = 5
	}
	if c.MaxParallel <= 0 {
		c.MaxParallel = 3
	}
	return c
}

// Orchestrator runs the pipeline and owns all writes to its jobs.
type Orchestrator struct {
	store       store.Store
	researcher  Researcher
	discoverer  Discoverer
	synthesizer Synthesizer
	cfg         Config
	log         *zap.Logger
}

// New wires an orchestrator.
func New(st store.Store, r Researcher, d Discoverer, syn Synthesizer, cfg Config) *Orchestrator {
	return &Orchestrator{
		store:       st,
		researcher:  r,
		discoverer:  d,
		synthesizer: syn,
		cfg:         cfg.withDefaults(),
		log:         zap.L().Named("pipeline"),
	}
}

// Submit registers a job and starts the pipeline in the background. The
// job outlives the submitting request: cancellation of ctx does not stop
// the run, and per-stage timeouts guarantee it terminates.
func (o *Orchestrator) Submit(ctx context.Context, input model.JobInput) (*model.AnalysisJob, error) {
	input.BaseURL = model.NormalizeURL(input.BaseURL)

	job, err := o.store.CreateJob(ctx, input)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create job")
	}

	go o.run(context.WithoutCancel(ctx), job.ID, input)

	return job, nil
}

// RunReport executes the pipeline synchronously without job tracking.
// Used by monitor refreshes and the one-shot CLI.
func (o *Orchestrator) RunReport(ctx context.Context, input model.JobInput) (*model.MarketReport, error) {
	input.BaseURL = model.NormalizeURL(input.BaseURL)

	report, err := o.execute(ctx, input, nil)
	if err != nil {
		return nil, err
	}
	o.appendHistory(ctx, input.BaseURL, report)
	return report, nil
}

// run drives one job to a terminal state. Any escape, including a panic
// inside an invoker, resolves the job to failed.
func (o *Orchestrator) run(ctx context.Context, jobID string, input model.JobInput) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("pipeline panic", zap.String("job_id", jobID), zap.Any("panic", r))
			if err := o.store.FailJob(ctx, jobID, "internal error"); err != nil {
				o.log.Error("fail job after panic", zap.String("job_id", jobID), zap.Error(err))
			}
		}
	}()

	started := time.Now()
	report, err := o.execute(ctx, input, func(stage string, status model.StepStatus) {
		if serr := o.store.SetJobStep(ctx, jobID, stage, status); serr != nil {
			o.log.Warn("update progress", zap.String("job_id", jobID), zap.Error(serr))
		}
	})
	if err != nil {
		o.log.Warn("pipeline failed",
			zap.String("job_id", jobID),
			zap.String("base_url", input.BaseURL),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err),
		)
		if serr := o.store.FailJob(ctx, jobID, err.Error()); serr != nil {
			o.log.Error("fail job", zap.String("job_id", jobID), zap.Error(serr))
		}
		return
	}

	if serr := o.store.CompleteJob(ctx, jobID, report); serr != nil {
		o.log.Error("complete job", zap.String("job_id", jobID), zap.Error(serr))
		return
	}
	o.appendHistory(ctx, input.BaseURL, report)

	o.log.Info("pipeline complete",
		zap.String("job_id", jobID),
		zap.String("base_url", input.BaseURL),
		zap.Int("competitors", len(report.Competitors)),
		zap.Duration("elapsed", time.Since(started)),
	)
}

// execute runs the four stages. progress may be nil for untracked runs.
func (o *Orchestrator) execute(ctx context.Context, input model.JobInput, progress func(stage string, status model.StepStatus)) (*model.MarketReport, error) {
	step := func(stage string, status model.StepStatus) {
		if progress != nil {
			progress(stage, status)
		}
	}

	// Stage 1: the base profile is the anchor of everything downstream,
	// so failure here is fatal.
	step(model.StageAnalyzeBase, model.StepInProgress)
	base, err := withTimeout(ctx, o.cfg.ResearchTimeout, func(ctx context.Context) (*model.EntityProfile, error) {
		return o.researcher.Research(ctx, input.BaseURL)
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: analyze base company")
	}
	step(model.StageAnalyzeBase, model.StepDone)

	// Stage 2: discovery failures degrade to an empty landscape.
	step(model.StageDiscover, model.StepInProgress)
	candidates, err := withTimeout(ctx, o.cfg.DiscoveryTimeout, func(ctx context.Context) ([]model.Candidate, error) {
		return o.discoverer.Discover(ctx, base, input.Scope, input.Region)
	})
	if err != nil {
		if eris.Is(err, discovery.ErrNoResults) {
			o.log.Info("no competitors discovered", zap.String("base", base.Name))
		} else {
			o.log.Warn("discovery degraded", zap.String("base", base.Name), zap.Error(err))
		}
		candidates = nil
	}
	if len(candidates) > o.cfg.MaxCompetitors {
		candidates = candidates[:o.cfg.MaxCompetitors]
	}
	step(model.StageDiscover, model.StepDone)

	// Stage 3: analyze every candidate, keep the ones that succeed.
	step(model.StageAnalyzeCompetitors, model.StepInProgress)
	competitors := o.analyzeCandidates(ctx, candidates)
	step(model.StageAnalyzeCompetitors, model.StepDone)

	// Stage 4: synthesis failure is fatal; the synthesizer already tried
	// its own fallback internally.
	step(model.StageSynthesize, model.StepInProgress)
	summary, err := withTimeout(ctx, o.cfg.SynthesisTimeout, func(ctx context.Context) (*model.ComparisonSummary, error) {
		return o.synthesizer.Synthesize(ctx, base, competitors, input.Scope, input.Region)
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: generate insights")
	}
	step(model.StageSynthesize, model.StepDone)

	return &model.MarketReport{
		Base:        *base,
		Competitors: competitors,
		Comparison:  *summary,
	}, nil
}

// analyzeCandidates fans out per-competitor research, waits for all of it,
// and drops failures. Result order follows the candidate ranking.
func (o *Orchestrator) analyzeCandidates(ctx context.Context, candidates []model.Candidate) []model.EntityProfile {
	profiles := make([]*model.EntityProfile, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxParallel)
	for i, cand := range candidates {
		g.Go(func() error {
			p, err := withTimeout(gctx, o.cfg.ResearchTimeout, func(ctx context.Context) (*model.EntityProfile, error) {
				return o.researcher.Research(ctx, cand.URL)
			})
			if err != nil {
				// Tolerated: the run proceeds with whoever succeeded.
				o.log.Warn("competitor analysis skipped",
					zap.String("name", cand.Name),
					zap.String("url", cand.URL),
					zap.Error(err),
				)
				return nil
			}
			if p.Name == "" {
				p.Name = cand.Name
			}
			profiles[i] = p
			return nil
		})
	}
	_ = g.Wait()

	out := make([]model.EntityProfile, 0, len(candidates))
	for _, p := range profiles {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}

func (o *Orchestrator) appendHistory(ctx context.Context, baseURL string, report *model.MarketReport) {
	snap := model.ReportSnapshot{TakenAt: time.Now().UTC(), Report: *report}
	if err := o.store.AppendHistory(ctx, baseURL, snap); err != nil {
		o.log.Warn("append history", zap.String("base_url", baseURL), zap.Error(err))
	}
}

// withTimeout bounds a single invoker call.
func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(tctx)
}
