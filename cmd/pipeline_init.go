package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/hubble-cli/internal/catalog"
	"github.com/sells-group/hubble-cli/internal/fetcher"
	"github.com/sells-group/hubble-cli/internal/inspect"
	"github.com/sells-group/hubble-cli/internal/pipeline"
	"github.com/sells-group/hubble-cli/internal/present"
	"github.com/sells-group/hubble-cli/internal/render"
	"github.com/sells-group/hubble-cli/internal/resilience"
	"github.com/sells-group/hubble-cli/internal/retrieve"
	"github.com/sells-group/hubble-cli/internal/selector"
	"github.com/sells-group/hubble-cli/internal/store"
	"github.com/sells-group/hubble-cli/pkg/mast"
)

// pipelineEnv holds the archive clients, the run ledger and the factory for
// pipelines needed by the fetch and serve commands.
type pipelineEnv struct {
	Store     store.Store // nil when the ledger is disabled
	Catalog   *catalog.Catalog
	Retriever *retrieve.Retriever
	Inspector *inspect.Inspector
	Breakers  *resilience.Breakers
	Policy    selector.Policy
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// Pipeline builds a pipeline that emits render requests to presenter.
func (pe *pipelineEnv) Pipeline(presenter render.Presenter) *pipeline.Pipeline {
	opts := []pipeline.Option{
		pipeline.WithPolicy(pe.Policy),
		pipeline.WithRenderOptions(
			render.WithZScale(cfg.Render.ZScale),
			render.WithColormap(cfg.Render.Colormap),
		),
	}
	if pe.Store != nil {
		opts = append(opts, pipeline.WithStore(pe.Store))
	}
	return pipeline.New(pe.Catalog, pe.Retriever, pe.Inspector, presenter, opts...)
}

// newBreakers builds the archive breakers from config.
func newBreakers() *resilience.Breakers {
	return resilience.NewBreakers(resilience.BreakerConfig{
		Threshold: cfg.Archive.BreakerThreshold,
		CoolDown:  cfg.Archive.BreakerCoolDown,
	})
}

// newCatalog builds the MAST client and catalog from config.
func newCatalog(breakers *resilience.Breakers) *catalog.Catalog {
	client := mast.NewClient(
		mast.WithBaseURL(cfg.Archive.BaseURL),
		mast.WithUserAgent(cfg.Archive.UserAgent),
		mast.WithMaxAttempts(cfg.Archive.MaxRetries),
		mast.WithPollInterval(cfg.Archive.PollInterval),
		mast.WithHTTPClient(&http.Client{
			Timeout: cfg.Archive.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		}),
	)
	return catalog.New(client, catalog.WithBreakers(breakers))
}

// initPipeline sets up the store and archive clients. Callers should defer
// env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	if !present.KnownColormap(cfg.Render.Colormap) {
		zap.L().Warn("unknown colormap, falling back to viridis",
			zap.String("colormap", cfg.Render.Colormap),
			zap.Strings("known", present.ColormapNames()),
		)
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if st == nil {
		zap.L().Info("run ledger disabled")
	}

	breakers := newBreakers()
	cat := newCatalog(breakers)
	var dl fetcher.Fetcher = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  cfg.Archive.UserAgent,
		Timeout:    cfg.Download.Timeout,
		MaxRetries: cfg.Download.MaxRetries,
	})
	policy := selector.DefaultPolicy()

	return &pipelineEnv{
		Store:   st,
		Catalog: cat,
		Retriever: retrieve.New(dl, cat, retrieve.Options{
			Dir:         cfg.Download.Dir,
			Concurrency: cfg.Download.Concurrency,
		}),
		Inspector: inspect.New(policy.Row),
		Breakers:  breakers,
		Policy:    policy,
	}, nil
}
