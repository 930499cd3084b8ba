package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/vintera/labelforge/internal/assets"
	"github.com/vintera/labelforge/internal/dsl"
	"github.com/vintera/labelforge/internal/refine"
	"github.com/vintera/labelforge/internal/render"
)

// GenerationStore persists run records; *assets.Store in production. A
// nil store runs the pipeline without persistence, which the CLI uses
// for offline mock runs.
type GenerationStore interface {
	CreateGeneration(ctx context.Context, submission json.RawMessage) (*assets.Generation, error)
	UpdateGeneration(ctx context.Context, gen *assets.Generation) error
}

// RunResult is the outcome of one full generation.
type RunResult struct {
	Generation *assets.Generation
	DSL        *dsl.LabelDSL
	Preview    *render.Preview
	PreviewURL string
	Images     []ImageResult
}

// Generator composes the full run: scheme, prompts, artwork, layout,
// initial render, then the refinement loop.
type Generator struct {
	pipeline     *Pipeline
	store        GenerationStore
	refiner      *refine.Loop
	refineParams refine.Params
	logger       *slog.Logger
}

// NewGenerator wires a Generator. store and refiner may be nil; a nil
// refiner skips refinement entirely.
func NewGenerator(p *Pipeline, store GenerationStore, refiner *refine.Loop, refineParams refine.Params, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		pipeline:     p,
		store:        store,
		refiner:      refiner,
		refineParams: refineParams,
		logger:       logger,
	}
}

// Run executes the whole pipeline for one submission.
func (g *Generator) Run(ctx context.Context, sub Submission) (*RunResult, error) {
	if err := sub.Check(); err != nil {
		return nil, err
	}

	gen, err := g.createRecord(ctx, sub)
	if err != nil {
		return nil, err
	}

	result, err := g.run(ctx, gen, sub)
	if err != nil {
		g.finishRecord(ctx, gen, assets.StatusFailed, nil)
		return nil, err
	}
	return result, nil
}

func (g *Generator) run(ctx context.Context, gen *assets.Generation, sub Submission) (*RunResult, error) {
	p := g.pipeline

	scheme, err := p.DesignSchemeStep(ctx, sub)
	if err != nil {
		return nil, err
	}

	specs, err := p.ImagePromptsStep(ctx, sub, scheme)
	if err != nil {
		return nil, err
	}

	images := p.GenerateImagesStep(ctx, gen.ID, specs)
	stored := make([]dsl.Asset, 0, len(images))
	for _, r := range images {
		if r.Err != nil {
			continue
		}
		stored = append(stored, dsl.Asset{
			ID:       r.Asset.ID,
			URL:      r.Asset.URL,
			Width:    r.Asset.Width,
			Height:   r.Asset.Height,
			Format:   r.Asset.Format,
			Checksum: r.Asset.Checksum,
		})
	}

	doc, err := p.DetailedLayoutStep(ctx, sub, scheme, stored)
	if err != nil {
		return nil, err
	}

	preview, previewURL, err := p.RenderStep(ctx, gen.ID, doc, 0)
	if err != nil {
		return nil, err
	}

	outcome := &refine.Outcome{DSL: doc, Preview: preview, PreviewURL: previewURL}
	if g.refiner != nil {
		outcome, err = g.refiner.Run(ctx, refine.Input{
			DSL:         doc,
			Preview:     preview,
			PreviewURL:  previewURL,
			Description: sub.Describe(),
		}, g.refineParams, func(ctx context.Context, iteration int, pv *render.Preview) (string, error) {
			_, url, err := g.publishPreview(ctx, gen, iteration, pv)
			return url, err
		})
		if err != nil {
			return nil, err
		}
	}

	gen.Iterations = outcome.Iterations
	gen.AppliedEdits = outcome.Applied
	gen.FailedEdits = outcome.Failed
	gen.PreviewURL = outcome.PreviewURL
	g.finishRecord(ctx, gen, assets.StatusCompleted, outcome.DSL)

	g.logger.Info("generation complete",
		"generation_id", gen.ID,
		"wine", sub.WineName,
		"iterations", outcome.Iterations,
		"applied_edits", outcome.Applied,
		"failed_edits", outcome.Failed)

	return &RunResult{
		Generation: gen,
		DSL:        outcome.DSL,
		Preview:    outcome.Preview,
		PreviewURL: outcome.PreviewURL,
		Images:     images,
	}, nil
}

func (g *Generator) publishPreview(ctx context.Context, gen *assets.Generation, iteration int, pv *render.Preview) (assets.ImageAsset, string, error) {
	asset, err := g.pipeline.uploader.UploadImage(ctx, gen.ID,
		fmt.Sprintf("preview-%d", iteration), pv.Data, "")
	if err != nil {
		return assets.ImageAsset{}, "", err
	}
	return asset, asset.URL, nil
}

// createRecord persists the pending run, or fabricates an in-memory
// record when no store is configured.
func (g *Generator) createRecord(ctx context.Context, sub Submission) (*assets.Generation, error) {
	submission, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("encoding submission: %w", err)
	}
	if g.store == nil {
		return assets.NewTransientGeneration(submission), nil
	}

	gen, err := g.store.CreateGeneration(ctx, submission)
	if err != nil {
		return nil, err
	}
	gen.Status = assets.StatusRunning
	if err := g.store.UpdateGeneration(ctx, gen); err != nil {
		return nil, err
	}
	return gen, nil
}

// finishRecord records the terminal state. Persistence failures at this
// point are logged, not surfaced: the pipeline outcome stands either way.
func (g *Generator) finishRecord(ctx context.Context, gen *assets.Generation, status string, doc *dsl.LabelDSL) {
	gen.Status = status
	if doc != nil {
		if data, err := json.Marshal(doc); err == nil {
			gen.LabelDSL = data
		}
	}
	if g.store == nil {
		return
	}
	if err := g.store.UpdateGeneration(ctx, gen); err != nil {
		g.logger.Warn("recording generation outcome failed",
			"generation_id", gen.ID,
			"status", status,
			"error", err)
	}
}
