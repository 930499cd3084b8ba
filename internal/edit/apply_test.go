package edit

import (
	"strings"
	"testing"

	"github.com/vintera/labelforge/internal/dsl"
)

func testDSL() *dsl.LabelDSL {
	return &dsl.LabelDSL{
		Version: dsl.Version,
		Canvas:  dsl.Canvas{Width: 900, Height: 1200, DPI: 144},
		Palette: dsl.Palette{
			Primary:     "#5a1f2b",
			Secondary:   "#d9c7a3",
			Accent:      "#8c6d3f",
			Background:  "#f4efe6",
			Temperature: "warm",
			Contrast:    "high",
		},
		Typography: dsl.Typography{
			Primary:   dsl.Font{Family: "Playfair Display", Weight: 700},
			Secondary: dsl.Font{Family: "Lato", Weight: 400},
			Hierarchy: "dominant",
		},
		Assets: []dsl.Asset{
			{ID: "art", URL: "https://cdn.example.com/content/ff.png", Width: 1024, Height: 1024, Format: "png", Checksum: "ff"},
		},
		Elements: []dsl.Element{
			{
				ID: "title", Type: dsl.TypeText,
				Bounds: dsl.Bounds{X: 0.1, Y: 0.05, W: 0.8, H: 0.15},
				Z:      20, Text: "Vintera Estate", Font: "primary", Color: "primary",
				Align: "center", LineHeight: 1.2, MaxLines: 1,
			},
			{
				ID: "hero", Type: dsl.TypeImage,
				Bounds:  dsl.Bounds{X: 0.2, Y: 0.3, W: 0.6, H: 0.45},
				Z:       5, AssetID: "art", Fit: "cover",
			},
			{
				ID: "divider", Type: dsl.TypeShape,
				Bounds: dsl.Bounds{X: 0.1, Y: 0.85, W: 0.8, H: 0.01},
				Z:      10, Shape: "line", Fill: "accent",
			},
		},
	}
}

func TestApply_MoveAndResize(t *testing.T) {
	d := testDSL()
	result := Apply(d, []Edit{
		{Op: OpMove, ID: "hero", DX: 0.1, DY: -0.1},
		{Op: OpResize, ID: "hero", DW: 0.1, DH: 0.1},
	})

	if len(result.Failed) != 0 {
		t.Fatalf("Failed = %+v, want none", result.Failed)
	}
	if len(result.Applied) != 2 {
		t.Fatalf("Applied = %d, want 2", len(result.Applied))
	}

	hero := result.Updated.Element("hero")
	want := dsl.Bounds{X: 0.3, Y: 0.2, W: 0.7, H: 0.55}
	if hero.Bounds != want {
		t.Errorf("hero bounds = %+v, want %+v", hero.Bounds, want)
	}

	// Invariants hold after application.
	if err := result.Updated.Check(); err != nil {
		t.Errorf("updated DSL fails validation: %v", err)
	}
}

func TestApply_BoundsNeverOverflowCanvas(t *testing.T) {
	d := testDSL()
	result := Apply(d, []Edit{
		{Op: OpMove, ID: "hero", DX: 0.9, DY: 0.9},
		{Op: OpResize, ID: "divider", DW: 0.9, DH: 0.9},
	})

	for _, el := range result.Updated.Elements {
		if el.Bounds.X+el.Bounds.W > 1 || el.Bounds.Y+el.Bounds.H > 1 {
			t.Errorf("element %s overflows canvas: %+v", el.ID, el.Bounds)
		}
	}
	if len(result.Applied) != 2 {
		t.Errorf("Applied = %d, want both (clamped, not failed)", len(result.Applied))
	}
}

func TestApply_RecolorRebindsRole(t *testing.T) {
	d := testDSL()
	result := Apply(d, []Edit{
		{Op: OpRecolor, ID: "title", Color: "accent"},
		{Op: OpRecolor, ID: "divider", Color: "secondary"},
	})

	if len(result.Failed) != 0 {
		t.Fatalf("Failed = %+v", result.Failed)
	}
	if got := result.Updated.Element("title").Color; got != "accent" {
		t.Errorf("title color = %q, want role %q", got, "accent")
	}
	if got := result.Updated.Element("divider").Fill; got != "secondary" {
		t.Errorf("divider fill = %q, want role %q", got, "secondary")
	}
}

func TestApply_RecolorImageFailsWithoutAborting(t *testing.T) {
	d := testDSL()
	result := Apply(d, []Edit{
		{Op: OpRecolor, ID: "hero", Color: "accent"},
		{Op: OpReorder, ID: "hero", Z: 99},
	})

	if len(result.Failed) != 1 {
		t.Fatalf("Failed = %+v, want exactly the recolor", result.Failed)
	}
	if result.Failed[0].Edit.Op != OpRecolor {
		t.Errorf("failed edit = %+v, want the recolor", result.Failed[0])
	}
	if !strings.Contains(result.Failed[0].Reason, "recolor(hero, accent)") {
		t.Errorf("Reason = %q, want the rendered edit in it", result.Failed[0].Reason)
	}
	if len(result.Applied) != 1 || result.Applied[0].Op != OpReorder {
		t.Errorf("Applied = %+v, want the reorder to proceed", result.Applied)
	}
	if got := result.Updated.Element("hero").Z; got != 99 {
		t.Errorf("hero z = %d, want 99", got)
	}
}

func TestApply_UnknownElementFailsWithoutPanic(t *testing.T) {
	d := testDSL()
	result := Apply(d, []Edit{{Op: OpMove, ID: "ghost", DX: 0.1, DY: 0.1}})

	if len(result.Failed) != 1 {
		t.Fatalf("Failed = %+v, want one entry", result.Failed)
	}
	if len(result.Applied) != 0 {
		t.Errorf("Applied = %+v, want none", result.Applied)
	}
	if !strings.Contains(result.Failed[0].Reason, "move(ghost, +0.100, +0.100)") {
		t.Errorf("Reason = %q, want the rendered edit in it", result.Failed[0].Reason)
	}
}

func TestEditString(t *testing.T) {
	tests := []struct {
		edit Edit
		want string
	}{
		{Edit{Op: OpMove, ID: "title", DX: 0.05, DY: -0.02}, "move(title, +0.050, -0.020)"},
		{Edit{Op: OpResize, ID: "hero", DW: -0.1, DH: 0.1}, "resize(hero, -0.100, +0.100)"},
		{Edit{Op: OpRecolor, ID: "divider", Color: "accent"}, "recolor(divider, accent)"},
		{Edit{Op: OpReorder, ID: "hero", Z: 500}, "reorder(hero, 500)"},
		{Edit{Op: "tilt", ID: "hero"}, "tilt(hero)"},
	}
	for _, tt := range tests {
		if got := tt.edit.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	d := testDSL()
	before := d.Element("hero").Bounds

	Apply(d, []Edit{{Op: OpMove, ID: "hero", DX: 0.1, DY: 0.1}})

	if d.Element("hero").Bounds != before {
		t.Error("Apply() mutated the input DSL")
	}
}
