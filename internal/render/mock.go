package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/vintera/labelforge/internal/dsl"
)

// mockMaxEdge bounds the mock preview's longest side in pixels.
const mockMaxEdge = 256

// Mock rasterizes a DSL into a flat-color PNG: palette background with
// one solid rectangle per element. Deterministic for identical input, so
// content-addressable tests get stable checksums.
type Mock struct{}

// NewMock returns the mock renderer.
func NewMock() *Mock { return &Mock{} }

// Render draws the preview.
func (m *Mock) Render(_ context.Context, d *dsl.LabelDSL) (*Preview, error) {
	if err := d.Check(); err != nil {
		return nil, fmt.Errorf("refusing to render an invalid DSL: %w", err)
	}

	w, h := previewSize(d.Canvas)
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	bg := parseHex(d.Palette.Background)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, bg)
		}
	}

	for _, el := range d.Elements {
		c := elementColor(d.Palette, el)
		x0 := int(el.Bounds.X * float64(w))
		y0 := int(el.Bounds.Y * float64(h))
		x1 := int((el.Bounds.X + el.Bounds.W) * float64(w))
		y1 := int((el.Bounds.Y + el.Bounds.H) * float64(h))
		for y := y0; y < y1 && y < h; y++ {
			for x := x0; x < x1 && x < w; x++ {
				img.Set(x, y, c)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding mock preview: %w", err)
	}

	return &Preview{Data: buf.Bytes(), Width: w, Height: h, MIMEType: "image/png"}, nil
}

func previewSize(c dsl.Canvas) (int, int) {
	w, h := c.Width, c.Height
	if w <= 0 || h <= 0 {
		return mockMaxEdge, mockMaxEdge
	}
	if w >= h {
		return mockMaxEdge, max(1, mockMaxEdge*h/w)
	}
	return max(1, mockMaxEdge*w/h), mockMaxEdge
}

func elementColor(p dsl.Palette, el dsl.Element) color.RGBA {
	switch el.Type {
	case dsl.TypeText:
		return parseHex(p.Color(el.Color))
	case dsl.TypeShape:
		return parseHex(p.Color(el.Fill))
	default:
		// Images render as a neutral block; the mock has no pixels to
		// sample.
		return color.RGBA{R: 0x88, G: 0x88, B: 0x88, A: 0xff}
	}
}

func parseHex(hex string) color.RGBA {
	var r, g, b uint8
	if _, err := fmt.Sscanf(hex, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{A: 0xff}
	}
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}
