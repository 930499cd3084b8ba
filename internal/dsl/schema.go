package dsl

import (
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/vintera/labelforge/internal/fault"
)

// hexColor matches a six-digit hex color with leading '#'.
const hexColor = `^#[0-9a-fA-F]{6}$`

func fptr(v float64) *float64 { return &v }

// labelSchema builds the structural schema for a LabelDSL document.
// Cross-field invariants (unique ids, x+w<=1, asset references, variant
// required fields) live in Check; a structural schema cannot express them.
func labelSchema() *jsonschema.Schema {
	// Resolve requires every schema node to appear exactly once in the
	// tree, so shared fragments are built fresh per use.
	colorSchema := func() *jsonschema.Schema {
		return &jsonschema.Schema{Type: "string", Pattern: hexColor}
	}
	roleSchema := func() *jsonschema.Schema {
		return &jsonschema.Schema{
			Type: "string",
			Enum: []any{"primary", "secondary", "accent", "background"},
		}
	}
	fontSchema := func() *jsonschema.Schema {
		return &jsonschema.Schema{
			Type:     "object",
			Required: []string{"family"},
			Properties: map[string]*jsonschema.Schema{
				"family": {Type: "string", MinLength: ptrInt(1)},
				"weight": {Type: "integer", Minimum: fptr(100), Maximum: fptr(900)},
			},
		}
	}
	unit := func() *jsonschema.Schema {
		return &jsonschema.Schema{Type: "number", Minimum: fptr(0), Maximum: fptr(1)}
	}

	return &jsonschema.Schema{
		Type:     "object",
		Required: []string{"version", "canvas", "palette", "typography"},
		Properties: map[string]*jsonschema.Schema{
			"version": {Type: "string"},
			"canvas": {
				Type:     "object",
				Required: []string{"width", "height"},
				Properties: map[string]*jsonschema.Schema{
					"width":      {Type: "integer", Minimum: fptr(1)},
					"height":     {Type: "integer", Minimum: fptr(1)},
					"dpi":        {Type: "integer", Minimum: fptr(1)},
					"background": colorSchema(),
				},
			},
			"palette": {
				Type:     "object",
				Required: []string{"primary", "secondary", "accent", "background", "temperature", "contrast"},
				Properties: map[string]*jsonschema.Schema{
					"primary":     colorSchema(),
					"secondary":   colorSchema(),
					"accent":      colorSchema(),
					"background":  colorSchema(),
					"temperature": {Type: "string", Enum: []any{"warm", "cool", "neutral"}},
					"contrast":    {Type: "string", Enum: []any{"high", "medium", "low"}},
				},
			},
			"typography": {
				Type:     "object",
				Required: []string{"primary", "secondary", "hierarchy"},
				Properties: map[string]*jsonschema.Schema{
					"primary":   fontSchema(),
					"secondary": fontSchema(),
					"hierarchy": {Type: "string", Enum: []any{"dominant", "balanced", "subtle"}},
				},
			},
			"assets": {
				Type: "array",
				Items: &jsonschema.Schema{
					Type:     "object",
					Required: []string{"id", "url", "checksum"},
					Properties: map[string]*jsonschema.Schema{
						"id":       {Type: "string", MinLength: ptrInt(1)},
						"url":      {Type: "string", MinLength: ptrInt(1)},
						"width":    {Type: "integer", Minimum: fptr(0)},
						"height":   {Type: "integer", Minimum: fptr(0)},
						"format":   {Type: "string"},
						"checksum": {Type: "string", MinLength: ptrInt(1)},
					},
				},
			},
			"elements": {
				Type: "array",
				Items: &jsonschema.Schema{
					Type:     "object",
					Required: []string{"id", "type", "bounds"},
					Properties: map[string]*jsonschema.Schema{
						"id":   {Type: "string", MinLength: ptrInt(1)},
						"type": {Type: "string", Enum: []any{TypeText, TypeImage, TypeShape}},
						"bounds": {
							Type:     "object",
							Required: []string{"x", "y", "w", "h"},
							Properties: map[string]*jsonschema.Schema{
								"x": unit(), "y": unit(), "w": unit(), "h": unit(),
							},
						},
						"z":          {Type: "integer", Minimum: fptr(0), Maximum: fptr(MaxZ)},
						"text":       {Type: "string"},
						"font":       {Type: "string", Enum: []any{"primary", "secondary"}},
						"color":      roleSchema(),
						"align":      {Type: "string", Enum: []any{"left", "center", "right"}},
						"lineHeight": {Type: "number", Minimum: fptr(0.5), Maximum: fptr(4)},
						"maxLines":   {Type: "integer", Minimum: fptr(1)},
						"assetId":    {Type: "string"},
						"fit":        {Type: "string", Enum: []any{"cover", "contain", "fill"}},
						"shape":      {Type: "string", Enum: []any{"rect", "line", "ellipse"}},
						"fill":       roleSchema(),
					},
				},
			},
		},
	}
}

func ptrInt(v int) *int { return &v }

// Schema returns the structural JSON schema for a label document, for
// callers that validate model output before handing it to Parse.
func Schema() *jsonschema.Schema { return labelSchema() }

var resolvedSchema = sync.OnceValues(func() (*jsonschema.Resolved, error) {
	return labelSchema().Resolve(nil)
})

// validateStructure runs the JSON-schema pass over a decoded document.
func validateStructure(instance any) error {
	resolved, err := resolvedSchema()
	if err != nil {
		return fault.Wrap(fault.KindProcessing, false, "label DSL schema failed to resolve", err)
	}
	if err := resolved.Validate(instance); err != nil {
		return fault.Wrap(fault.KindValidation, false, "label DSL failed schema validation", err)
	}
	return nil
}
