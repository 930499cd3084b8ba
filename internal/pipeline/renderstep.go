package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vintera/labelforge/internal/dsl"
	"github.com/vintera/labelforge/internal/render"
)

// RenderStep rasterizes the DSL and stores the preview in the
// content-addressable store. iteration distinguishes refinement previews
// from the initial render.
func (p *Pipeline) RenderStep(ctx context.Context, generationID uuid.UUID, doc *dsl.LabelDSL, iteration int) (*render.Preview, string, error) {
	ctx, span := p.startSpan(ctx, "render", attribute.Int("render.iteration", iteration))

	preview, url, err := p.renderAndStore(ctx, generationID, doc, iteration)
	endSpan(span, err)
	if err != nil {
		return nil, "", err
	}

	p.logger.Debug("preview rendered",
		"generation_id", generationID,
		"iteration", iteration,
		"size", fmt.Sprintf("%dx%d", preview.Width, preview.Height))
	return preview, url, nil
}

func (p *Pipeline) renderAndStore(ctx context.Context, generationID uuid.UUID, doc *dsl.LabelDSL, iteration int) (*render.Preview, string, error) {
	preview, err := p.renderer.Render(ctx, doc)
	if err != nil {
		return nil, "", fmt.Errorf("rendering preview: %w", err)
	}

	asset, err := p.uploader.UploadImage(ctx, generationID,
		fmt.Sprintf("preview-%d", iteration), preview.Data, "")
	if err != nil {
		return nil, "", err
	}
	return preview, asset.URL, nil
}
