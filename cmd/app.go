package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vintera/labelforge/internal/assets"
	"github.com/vintera/labelforge/internal/config"
	"github.com/vintera/labelforge/internal/llm"
	"github.com/vintera/labelforge/internal/log"
	"github.com/vintera/labelforge/internal/observability"
	"github.com/vintera/labelforge/internal/pipeline"
	"github.com/vintera/labelforge/internal/refine"
	"github.com/vintera/labelforge/internal/render"
)

// app wires the full dependency graph for one CLI invocation.
type app struct {
	cfg    *config.Config
	logger log.Logger

	pool      *pgxpool.Pool // nil when the database is unavailable
	store     *assets.Store // nil when pool is nil
	generator *pipeline.Generator
	refiner   *refine.Loop
	pipe      *pipeline.Pipeline
	uploader  *assets.Uploader

	shutdownTracing func(context.Context) error
}

// newApp loads configuration and builds the pipeline. requireDB makes a
// missing database fatal; otherwise the run proceeds without
// persistence.
func newApp(ctx context.Context, requireDB bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})

	a := &app{cfg: cfg, logger: logger}

	if cfg.Observability.Enabled {
		shutdown, err := observability.Setup(ctx, observability.Config{
			Endpoint:    cfg.Observability.Endpoint,
			Environment: cfg.Observability.Environment,
			ServiceName: cfg.Observability.ServiceName,
		}, logger)
		if err != nil {
			return nil, err
		}
		a.shutdownTracing = shutdown
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresConnectionString())
	if err == nil {
		err = pool.Ping(ctx)
	}
	if err != nil {
		if requireDB {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		logger.Warn("database unavailable, continuing without persistence", "error", err)
	} else {
		a.pool = pool
		a.store, err = assets.NewStore(pool, logger)
		if err != nil {
			return nil, err
		}
	}

	blobs, err := assets.NewFSStore(cfg.BlobDir, cfg.BlobBaseURL, logger)
	if err != nil {
		return nil, err
	}

	retry := cfg.Retry.Fault()
	var aliasStore assets.AliasStore = a.store
	if a.store == nil {
		aliasStore = newMemoryAliases()
	}
	a.uploader = assets.NewUploader(blobs, aliasStore, retry, logger)

	var client llm.Client
	var imageClient llm.ImageClient
	if cfg.Mock {
		mock := newScriptedMock()
		client, imageClient = mock, mock
		logger.Info("mock mode: model calls are scripted, no network access")
	} else {
		gc, err := llm.NewGoogleClient(ctx, cfg.APIKey, cfg.RateLimitRPS, cfg.RateBurst, logger)
		if err != nil {
			return nil, err
		}
		client, imageClient = gc, gc
	}

	invoker := llm.NewInvoker(client, cfg.Steps, retry, logger)

	var renderer render.Renderer = render.NewMock()
	if cfg.RendererURL != "" {
		renderer = render.NewHTTPRenderer(cfg.RendererURL, 0)
	}

	a.pipe = pipeline.New(invoker, imageClient, a.uploader, renderer, cfg.Steps, retry,
		pipeline.Config{
			ImageWorkers: cfg.Pipeline.ImageWorkers,
			AspectRatio:  cfg.Pipeline.AspectRatio,
		}, logger)
	a.refiner = refine.New(invoker, cfg.Steps, renderer, logger)

	var genStore pipeline.GenerationStore
	if a.store != nil {
		genStore = a.store
	}
	a.generator = pipeline.NewGenerator(a.pipe, genStore, a.refiner, refine.Params{
		MaxIterations: cfg.Pipeline.MaxIterations,
		MaxEdits:      cfg.Pipeline.MaxEdits,
		MaxDelta:      cfg.Pipeline.MaxDelta,
	}, logger)

	return a, nil
}

// Close flushes traces and releases the pool.
func (a *app) Close(ctx context.Context) {
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil {
			a.logger.Warn("flushing traces failed", "error", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
