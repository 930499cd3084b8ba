package edit

import (
	"fmt"

	"github.com/vintera/labelforge/internal/dsl"
)

// Failed records an edit that could not be applied, without aborting the
// rest of the batch.
type Failed struct {
	Edit   Edit   `json:"edit"`
	Reason string `json:"reason"`
}

// ApplyResult carries the outcome of folding a batch over a DSL. Partial
// application is expected and surfaced, never hidden.
type ApplyResult struct {
	Updated *dsl.LabelDSL
	Applied []Edit
	Failed  []Failed
}

// Apply folds edits over d, producing a new DSL. The input is never
// mutated. Spatial edits go through ClampBounds; recolor rebinds the
// element's palette role; reorder rewrites z. An edit inapplicable to its
// target's kind is recorded as failed and skipped. The result satisfies
// every DSL invariant after each individual edit.
func Apply(d *dsl.LabelDSL, edits []Edit) ApplyResult {
	work := d.Clone()
	result := ApplyResult{Updated: work}

	for _, e := range edits {
		el := work.Element(e.ID)
		if el == nil {
			// Validation filters these; a stray id is a failure, not a panic.
			result.Failed = append(result.Failed, Failed{
				Edit:   e,
				Reason: fmt.Sprintf("%s: element not found", e),
			})
			continue
		}

		saved := *el
		if reason := applyOne(el, e); reason != "" {
			*el = saved
			result.Failed = append(result.Failed, Failed{
				Edit:   e,
				Reason: fmt.Sprintf("%s: %s", e, reason),
			})
			continue
		}

		if err := work.Check(); err != nil {
			*el = saved
			result.Failed = append(result.Failed, Failed{
				Edit:   e,
				Reason: fmt.Sprintf("%s: would violate a layout invariant: %v", e, err),
			})
			continue
		}

		result.Applied = append(result.Applied, e)
	}

	return result
}

// applyOne mutates el in place. Returns a non-empty reason when the edit
// does not apply to the element's kind.
func applyOne(el *dsl.Element, e Edit) string {
	switch e.Op {
	case OpMove, OpResize:
		el.Bounds = ClampBounds(el.Bounds, e)
	case OpRecolor:
		switch el.Type {
		case dsl.TypeText:
			el.Color = e.Color
		case dsl.TypeShape:
			el.Fill = e.Color
		default:
			return fmt.Sprintf("recolor does not apply to %s elements", el.Type)
		}
	case OpReorder:
		if e.Z < 0 || e.Z > dsl.MaxZ {
			return fmt.Sprintf("z %d outside [0,%d]", e.Z, dsl.MaxZ)
		}
		el.Z = e.Z
	default:
		return fmt.Sprintf("unknown edit op %q", e.Op)
	}
	return ""
}
