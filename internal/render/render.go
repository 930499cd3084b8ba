// Package render defines the rasterizer boundary. The real rasterizer is
// an external collaborator consumed as a black box; this package carries
// its contract and a deterministic mock for offline runs and tests.
package render

import (
	"context"

	"github.com/vintera/labelforge/internal/dsl"
)

// Preview is a rendered label image.
type Preview struct {
	Data     []byte
	Width    int
	Height   int
	MIMEType string
}

// Renderer turns a validated DSL into pixels.
type Renderer interface {
	Render(ctx context.Context, d *dsl.LabelDSL) (*Preview, error)
}
