package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/marketintel/internal/detect"
	"github.com/sells-group/marketintel/internal/discovery"
	"github.com/sells-group/marketintel/internal/monitor"
	"github.com/sells-group/marketintel/internal/pipeline"
	"github.com/sells-group/marketintel/internal/research"
	"github.com/sells-group/marketintel/internal/scrape"
	"github.com/sells-group/marketintel/internal/store"
	"github.com/sells-group/marketintel/internal/synthesis"
	anthropicpkg "github.com/sells-group/marketintel/pkg/anthropic"
	"github.com/sells-group/marketintel/pkg/firecrawl"
	"github.com/sells-group/marketintel/pkg/jina"
	"github.com/sells-group/marketintel/pkg/perplexity"
)

// engineEnv holds the initialized store, orchestrator, and scheduler shared
// by the serve/analyze/monitor commands.
type engineEnv struct {
	Store        store.Store
	Orchestrator *pipeline.Orchestrator
	Scheduler    *monitor.Scheduler
}

// Close releases resources held by the environment.
func (e *engineEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEngine sets up the store, API clients, the three invokers, the
// pipeline orchestrator, and the monitor scheduler. Callers should defer
// env.Close(). Without an Anthropic key the invokers run as stubs so the
// engine stays usable for local development.
func initEngine(ctx context.Context) (*engineEnv, error) {
	st, err := initStore()
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	var (
		researcher  pipeline.Researcher
		discoverer  pipeline.Discoverer
		synthesizer pipeline.Synthesizer
	)

	if cfg.Anthropic.Key == "" {
		zap.L().Warn("MARKETINTEL_ANTHROPIC_KEY not set, running with stub invokers")
		researcher = &pipeline.StubResearcher{}
		discoverer = &pipeline.StubDiscoverer{}
		synthesizer = &pipeline.StubSynthesizer{}
	} else {
		anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)

		jinaOpts := []jina.Option{jina.WithBaseURL(cfg.Jina.BaseURL)}
		if cfg.Jina.SearchBaseURL != "" {
			jinaOpts = append(jinaOpts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
		}
		if cfg.Jina.RequestsPerSec > 0 {
			jinaOpts = append(jinaOpts, jina.WithRateLimit(cfg.Jina.RequestsPerSec))
		}
		jinaClient := jina.NewClient(cfg.Jina.Key, jinaOpts...)

		// Scrape chain: Jina primary, Firecrawl fallback.
		scrapers := []scrape.Scraper{scrape.NewJina(jinaClient)}
		if cfg.Firecrawl.Key != "" {
			firecrawlClient := firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL))
			scrapers = append(scrapers, scrape.NewFirecrawl(firecrawlClient))
		}
		chain := scrape.NewChain(scrapers...)

		researchOpts := []research.Option{
			research.WithModel(cfg.Anthropic.Model),
			research.WithMaxTokens(int64(cfg.Anthropic.MaxTokens)),
			research.WithPricingPaths(cfg.Research.PricingPaths),
		}
		if cfg.Perplexity.Key != "" {
			perplexityClient := perplexity.NewClient(cfg.Perplexity.Key,
				perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
				perplexity.WithModel(cfg.Perplexity.Model),
			)
			researchOpts = append(researchOpts, research.WithNewsClient(perplexityClient))
		}
		researcher = research.New(chain, anthropicClient, researchOpts...)

		discoverer = discovery.New(anthropicClient,
			discovery.WithModel(cfg.Anthropic.Model),
			discovery.WithSearch(jinaClient),
			discovery.WithLimit(cfg.Discovery.MaxCompetitors),
		)

		synthesizer = synthesis.New(anthropicClient,
			synthesis.WithModel(cfg.Anthropic.SynthesisModel),
			synthesis.WithMaxTokens(int64(cfg.Anthropic.MaxTokens)),
		)
	}

	orch := pipeline.New(st, researcher, discoverer, synthesizer, pipeline.Config{
		ResearchTimeout:  time.Duration(cfg.Research.TimeoutSecs) * time.Second,
		DiscoveryTimeout: time.Duration(cfg.Discovery.TimeoutSecs) * time.Second,
		SynthesisTimeout: time.Duration(cfg.Synthesis.TimeoutSecs) * time.Second,
		MaxCompetitors:   cfg.Discovery.MaxCompetitors,
	})

	var newsRules []detect.KeywordRule
	if cfg.Detect.RulesPath != "" {
		newsRules, err = detect.LoadNewsRules(cfg.Detect.RulesPath)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		zap.L().Info("news rules loaded", zap.String("path", cfg.Detect.RulesPath), zap.Int("rules", len(newsRules)))
	}

	sched := monitor.New(st, orch, monitor.Config{
		DefaultIntervalHours: cfg.Monitor.DefaultIntervalHours,
		PollInterval:         time.Duration(cfg.Monitor.PollIntervalSecs) * time.Second,
		NewsRules:            newsRules,
	})

	return &engineEnv{Store: st, Orchestrator: orch, Scheduler: sched}, nil
}

func initStore() (store.Store, error) {
	switch cfg.Store.Driver {
	case "", "memory":
		zap.L().Info("using in-memory store")
		return store.NewMemory(), nil
	case "sqlite":
		st, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return nil, eris.Wrapf(err, "open sqlite store %s", cfg.Store.Path)
		}
		zap.L().Info("using sqlite store", zap.String("path", cfg.Store.Path))
		return st, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
