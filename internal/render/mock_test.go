package render

import (
	"bytes"
	"context"
	"image/png"
	"testing"

	"github.com/vintera/labelforge/internal/dsl"
)

func validDSL() *dsl.LabelDSL {
	return &dsl.LabelDSL{
		Version: dsl.Version,
		Canvas:  dsl.Canvas{Width: 900, Height: 1200, DPI: 144},
		Palette: dsl.Palette{
			Primary: "#5a1f2b", Secondary: "#d9c7a3", Accent: "#8c6d3f",
			Background: "#f4efe6", Temperature: "warm", Contrast: "high",
		},
		Typography: dsl.Typography{
			Primary:   dsl.Font{Family: "Playfair Display", Weight: 700},
			Secondary: dsl.Font{Family: "Lato", Weight: 400},
			Hierarchy: "dominant",
		},
		Assets: []dsl.Asset{},
		Elements: []dsl.Element{
			{
				ID: "title", Type: dsl.TypeText,
				Bounds: dsl.Bounds{X: 0.1, Y: 0.1, W: 0.8, H: 0.2},
				Z:      10, Text: "Vintera", Font: "primary", Color: "primary",
				Align: "center", LineHeight: 1.2, MaxLines: 1,
			},
		},
	}
}

func TestMockRender_ProducesDecodablePNG(t *testing.T) {
	preview, err := NewMock().Render(context.Background(), validDSL())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	img, err := png.Decode(bytes.NewReader(preview.Data))
	if err != nil {
		t.Fatalf("preview is not valid PNG: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != preview.Width || b.Dy() != preview.Height {
		t.Errorf("reported %dx%d, decoded %dx%d", preview.Width, preview.Height, b.Dx(), b.Dy())
	}

	// Portrait canvas keeps portrait aspect.
	if preview.Width >= preview.Height {
		t.Errorf("preview %dx%d lost the portrait aspect", preview.Width, preview.Height)
	}
}

func TestMockRender_Deterministic(t *testing.T) {
	m := NewMock()
	a, err := m.Render(context.Background(), validDSL())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	b, err := m.Render(context.Background(), validDSL())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !bytes.Equal(a.Data, b.Data) {
		t.Error("identical DSLs rendered different bytes")
	}
}

func TestMockRender_RejectsInvalidDSL(t *testing.T) {
	d := validDSL()
	d.Elements[0].Bounds.W = 2

	if _, err := NewMock().Render(context.Background(), d); err == nil {
		t.Error("Render() accepted an invalid DSL")
	}
}
