package dsl

import (
	"fmt"
	"regexp"

	"github.com/vintera/labelforge/internal/fault"
)

var hexColorRe = regexp.MustCompile(hexColor)

// Check enforces every DSL invariant on an in-memory value. It runs after
// the structural schema at parse time, and again after every edit
// application; the edit engine never returns a value that fails it.
func (d *LabelDSL) Check() error {
	if d.Canvas.Width <= 0 || d.Canvas.Height <= 0 || d.Canvas.DPI <= 0 {
		return fault.Validation("canvas dimensions and dpi must be positive").
			With("width", d.Canvas.Width).
			With("height", d.Canvas.Height).
			With("dpi", d.Canvas.DPI)
	}

	for role, hex := range map[string]string{
		"primary":    d.Palette.Primary,
		"secondary":  d.Palette.Secondary,
		"accent":     d.Palette.Accent,
		"background": d.Palette.Background,
	} {
		if !hexColorRe.MatchString(hex) {
			return fault.Validation(fmt.Sprintf("palette %s is not a hex color", role)).
				With("value", hex)
		}
	}
	if !oneOf(d.Palette.Temperature, "warm", "cool", "neutral") {
		return fault.Validation("palette temperature must be warm, cool or neutral").
			With("value", d.Palette.Temperature)
	}
	if !oneOf(d.Palette.Contrast, "high", "medium", "low") {
		return fault.Validation("palette contrast must be high, medium or low").
			With("value", d.Palette.Contrast)
	}

	if d.Typography.Primary.Family == "" || d.Typography.Secondary.Family == "" {
		return fault.Validation("typography requires both font families")
	}
	if !oneOf(d.Typography.Hierarchy, "dominant", "balanced", "subtle") {
		return fault.Validation("typography hierarchy must be dominant, balanced or subtle").
			With("value", d.Typography.Hierarchy)
	}

	assetIDs := make(map[string]bool, len(d.Assets))
	for _, a := range d.Assets {
		if a.ID == "" {
			return fault.Validation("asset id must not be empty")
		}
		if assetIDs[a.ID] {
			return fault.Validation("asset ids must be unique").With("id", a.ID)
		}
		assetIDs[a.ID] = true
	}

	seen := make(map[string]bool, len(d.Elements))
	for i := range d.Elements {
		el := &d.Elements[i]
		if el.ID == "" {
			return fault.Validation("element id must not be empty").With("index", i)
		}
		if seen[el.ID] {
			return fault.Validation("element ids must be unique").With("id", el.ID)
		}
		seen[el.ID] = true

		if err := el.check(); err != nil {
			return err
		}

		// Cross-reference pass: image elements must point at a declared
		// asset. Not expressible in the structural schema.
		if el.Type == TypeImage && !assetIDs[el.AssetID] {
			return fault.Validation("image element references an undeclared asset").
				With("id", el.ID).
				With("assetId", el.AssetID)
		}
	}

	return nil
}

// check enforces the per-element invariants: bounds inside the unit
// square, z in range, and the variant's required fields.
func (el *Element) check() error {
	b := el.Bounds
	if b.X < 0 || b.Y < 0 || b.W < 0 || b.H < 0 || b.X > 1 || b.Y > 1 || b.W > 1 || b.H > 1 {
		return fault.Validation("element bounds must be within [0,1]").
			With("id", el.ID).
			With("bounds", b)
	}
	if b.X+b.W > 1 || b.Y+b.H > 1 {
		return fault.Validation("element bounds must stay inside the canvas").
			With("id", el.ID).
			With("bounds", b)
	}
	if el.Z < 0 || el.Z > MaxZ {
		return fault.Validation(fmt.Sprintf("element z must be within [0,%d]", MaxZ)).
			With("id", el.ID).
			With("z", el.Z)
	}

	switch el.Type {
	case TypeText:
		if el.Text == "" {
			return fault.Validation("text element requires text").With("id", el.ID)
		}
		if !oneOf(el.Font, "primary", "secondary") {
			return fault.Validation("text element font must be primary or secondary").
				With("id", el.ID).With("font", el.Font)
		}
		if !oneOf(el.Color, PaletteRoles...) {
			return fault.Validation("text element color must be a palette role").
				With("id", el.ID).With("color", el.Color)
		}
		if !oneOf(el.Align, "left", "center", "right") {
			return fault.Validation("text element align must be left, center or right").
				With("id", el.ID).With("align", el.Align)
		}
		if el.LineHeight <= 0 || el.MaxLines < 1 {
			return fault.Validation("text element lineHeight and maxLines must be positive").
				With("id", el.ID)
		}
	case TypeImage:
		if el.AssetID == "" {
			return fault.Validation("image element requires assetId").With("id", el.ID)
		}
	case TypeShape:
		if !oneOf(el.Shape, "rect", "line", "ellipse") {
			return fault.Validation("shape element shape must be rect, line or ellipse").
				With("id", el.ID).With("shape", el.Shape)
		}
		if !oneOf(el.Fill, PaletteRoles...) {
			return fault.Validation("shape element fill must be a palette role").
				With("id", el.ID).With("fill", el.Fill)
		}
	default:
		return fault.Validation("element type must be text, image or shape").
			With("id", el.ID).With("type", el.Type)
	}

	return nil
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
