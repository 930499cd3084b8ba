// Package edit sanitizes and applies refinement edits against a label
// DSL. Proposals arrive untrusted (usually model output); every candidate
// is bucketed into rejected, clamped or accepted, and application yields
// a new validated DSL without mutating the input.
package edit

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// Op identifies an edit variant.
type Op string

const (
	OpMove    Op = "move"
	OpResize  Op = "resize"
	OpRecolor Op = "recolor"
	OpReorder Op = "reorder"
)

// Edit is the tagged union of refinement operations. Deltas are
// proposals; clamping bounds them before application.
type Edit struct {
	Op Op     `json:"op"`
	ID string `json:"id"`

	// move
	DX float64 `json:"dx,omitempty"`
	DY float64 `json:"dy,omitempty"`

	// resize
	DW float64 `json:"dw,omitempty"`
	DH float64 `json:"dh,omitempty"`

	// recolor: a palette role, never a literal color value
	Color string `json:"color,omitempty"`

	// reorder
	Z int `json:"z,omitempty"`
}

func (e Edit) String() string {
	switch e.Op {
	case OpMove:
		return fmt.Sprintf("move(%s, %+.3f, %+.3f)", e.ID, e.DX, e.DY)
	case OpResize:
		return fmt.Sprintf("resize(%s, %+.3f, %+.3f)", e.ID, e.DW, e.DH)
	case OpRecolor:
		return fmt.Sprintf("recolor(%s, %s)", e.ID, e.Color)
	case OpReorder:
		return fmt.Sprintf("reorder(%s, %d)", e.ID, e.Z)
	}
	return fmt.Sprintf("%s(%s)", e.Op, e.ID)
}

// editSchema validates one raw candidate before it is trusted as an Edit.
func editSchema() *jsonschema.Schema {
	// Resolve requires every schema node to appear exactly once in the
	// tree, so shared fragments are built fresh per use.
	id := func() *jsonschema.Schema {
		return &jsonschema.Schema{Type: "string", MinLength: intPtr(1)}
	}
	num := func() *jsonschema.Schema {
		return &jsonschema.Schema{Type: "number"}
	}

	variant := func(op string, required []string, extra map[string]*jsonschema.Schema) *jsonschema.Schema {
		props := map[string]*jsonschema.Schema{
			"op": {Type: "string", Enum: []any{op}},
			"id": id(),
		}
		for k, v := range extra {
			props[k] = v
		}
		return &jsonschema.Schema{
			Type:       "object",
			Required:   append([]string{"op", "id"}, required...),
			Properties: props,
		}
	}

	return &jsonschema.Schema{
		AnyOf: []*jsonschema.Schema{
			variant("move", []string{"dx", "dy"}, map[string]*jsonschema.Schema{"dx": num(), "dy": num()}),
			variant("resize", []string{"dw", "dh"}, map[string]*jsonschema.Schema{"dw": num(), "dh": num()}),
			variant("recolor", []string{"color"}, map[string]*jsonschema.Schema{
				"color": {Type: "string", Enum: []any{"primary", "secondary", "accent", "background"}},
			}),
			variant("reorder", []string{"z"}, map[string]*jsonschema.Schema{"z": {Type: "integer"}}),
		},
	}
}

func intPtr(v int) *int { return &v }

// Schema returns the structural schema for a single edit candidate.
func Schema() *jsonschema.Schema { return editSchema() }

var resolvedEditSchema = sync.OnceValues(func() (*jsonschema.Resolved, error) {
	return editSchema().Resolve(nil)
})

// decode validates a raw candidate structurally and decodes it.
func decode(raw json.RawMessage) (Edit, error) {
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return Edit{}, fmt.Errorf("candidate is not valid JSON: %w", err)
	}

	resolved, err := resolvedEditSchema()
	if err != nil {
		return Edit{}, fmt.Errorf("edit schema failed to resolve: %w", err)
	}
	if err := resolved.Validate(instance); err != nil {
		return Edit{}, fmt.Errorf("candidate failed edit schema: %w", err)
	}

	var e Edit
	if err := json.Unmarshal(raw, &e); err != nil {
		return Edit{}, fmt.Errorf("decoding candidate: %w", err)
	}
	return e, nil
}
