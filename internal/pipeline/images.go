package pipeline

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/vintera/labelforge/internal/assets"
	"github.com/vintera/labelforge/internal/fault"
	"github.com/vintera/labelforge/internal/llm"
)

// ImageResult is the per-item outcome of the image-generate step. Err is
// nil on success; partial failure is expected and surfaced, never
// collapsed into one batch error.
type ImageResult struct {
	Spec  ImagePromptSpec
	Asset assets.ImageAsset
	Err   error
}

// GenerateImagesStep generates and stores artwork for every prompt spec
// concurrently, bounded by the worker limit. One item's retry exhaustion
// does not cancel siblings: results are collected per item, in spec
// order.
func (p *Pipeline) GenerateImagesStep(ctx context.Context, generationID uuid.UUID, specs []ImagePromptSpec) []ImageResult {
	ctx, span := p.startSpan(ctx, llm.StepImageGenerate,
		attribute.Int("image.count", len(specs)),
		attribute.Int("image.workers", p.cfg.ImageWorkers))
	defer span.End()

	st := p.settings.For(llm.StepImageGenerate)
	results := make([]ImageResult, len(specs))

	var g errgroup.Group
	g.SetLimit(p.cfg.ImageWorkers)
	for i, spec := range specs {
		g.Go(func() error {
			asset, err := p.generateOne(ctx, generationID, st.Model, spec)
			results[i] = ImageResult{Spec: spec, Asset: asset, Err: err}
			if err != nil {
				p.logger.Warn("image generation failed",
					"generation_id", generationID,
					"asset_id", spec.AssetID,
					"error", err)
			}
			// Sibling isolation: errors land in the per-item slot, never
			// in the group.
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	span.SetAttributes(attribute.Int("image.failed", failed))
	return results
}

// generateOne runs one prompt through the image model and the
// content-addressable store.
func (p *Pipeline) generateOne(ctx context.Context, generationID uuid.UUID, model string, spec ImagePromptSpec) (assets.ImageAsset, error) {
	data, err := fault.Retry(ctx, p.logger, "image."+spec.AssetID, p.retry,
		func(ctx context.Context) ([]byte, error) {
			return p.images.GenerateImage(ctx, llm.ImageRequest{
				Model:       model,
				Prompt:      spec.Prompt,
				AspectRatio: spec.AspectRatio,
			})
		})
	if err != nil {
		return assets.ImageAsset{}, err
	}
	return p.uploader.UploadImage(ctx, generationID, spec.AssetID, data, "")
}
