package edit

import (
	"encoding/json"
	"fmt"

	"github.com/vintera/labelforge/internal/dsl"
)

// Limits bounds a batch of untrusted candidates.
type Limits struct {
	MaxEdits           int
	MaxDelta           float64
	ExistingElementIDs []string
}

// Rejected records a discarded candidate and the reason.
type Rejected struct {
	Raw    json.RawMessage `json:"raw"`
	Reason string          `json:"reason"`
}

// Clamped records an out-of-range candidate together with its bounded
// replacement.
type Clamped struct {
	Original Edit   `json:"original"`
	Clamped  Edit   `json:"clamped"`
	Reason   string `json:"reason"`
}

// Result buckets every candidate from one batch. Valid preserves input
// order and contains accepted candidates plus clamped replacements.
type Result struct {
	Valid    []Edit
	Rejected []Rejected
	Clamped  []Clamped
}

// ValidateAndClamp evaluates every candidate in input order, never
// short-circuiting. Each lands in exactly one bucket: rejected (over the
// batch limit, structurally invalid, or targeting an unknown element),
// clamped (deltas or z out of range, bounded to the nearest legal value)
// or accepted unchanged.
func ValidateAndClamp(candidates []json.RawMessage, limits Limits) Result {
	existing := make(map[string]bool, len(limits.ExistingElementIDs))
	for _, id := range limits.ExistingElementIDs {
		existing[id] = true
	}

	var result Result
	for _, raw := range candidates {
		if limits.MaxEdits > 0 && len(result.Valid) >= limits.MaxEdits {
			result.Rejected = append(result.Rejected, Rejected{
				Raw:    raw,
				Reason: fmt.Sprintf("batch limit of %d edits reached", limits.MaxEdits),
			})
			continue
		}

		e, err := decode(raw)
		if err != nil {
			result.Rejected = append(result.Rejected, Rejected{Raw: raw, Reason: err.Error()})
			continue
		}

		if !existing[e.ID] {
			result.Rejected = append(result.Rejected, Rejected{
				Raw:    raw,
				Reason: fmt.Sprintf("element %q does not exist", e.ID),
			})
			continue
		}

		clamped, reason := clampDeltas(e, limits.MaxDelta)
		if reason != "" {
			result.Clamped = append(result.Clamped, Clamped{Original: e, Clamped: clamped, Reason: reason})
			result.Valid = append(result.Valid, clamped)
			continue
		}

		result.Valid = append(result.Valid, e)
	}
	return result
}

// clampDeltas bounds the requested magnitudes: move/resize deltas to
// [-maxDelta, maxDelta] per axis with sign preserved, reorder z to
// [0, 1000]. Returns the (possibly unchanged) edit and a non-empty
// reason when anything was adjusted.
func clampDeltas(e Edit, maxDelta float64) (Edit, string) {
	switch e.Op {
	case OpMove:
		dx, cx := clampAbs(e.DX, maxDelta)
		dy, cy := clampAbs(e.DY, maxDelta)
		if cx || cy {
			out := e
			out.DX, out.DY = dx, dy
			return out, fmt.Sprintf("move deltas exceed ±%.3f", maxDelta)
		}
	case OpResize:
		dw, cw := clampAbs(e.DW, maxDelta)
		dh, ch := clampAbs(e.DH, maxDelta)
		if cw || ch {
			out := e
			out.DW, out.DH = dw, dh
			return out, fmt.Sprintf("resize deltas exceed ±%.3f", maxDelta)
		}
	case OpReorder:
		if e.Z < 0 {
			out := e
			out.Z = 0
			return out, "z below 0"
		}
		if e.Z > dsl.MaxZ {
			out := e
			out.Z = dsl.MaxZ
			return out, fmt.Sprintf("z above %d", dsl.MaxZ)
		}
	}
	return e, ""
}

// clampAbs bounds v to [-limit, limit], preserving sign.
func clampAbs(v, limit float64) (float64, bool) {
	if limit <= 0 {
		return v, false
	}
	if v > limit {
		return limit, true
	}
	if v < -limit {
		return -limit, true
	}
	return v, false
}

// ClampBounds materializes a spatial edit against an element's current
// normalized bounds, keeping the resulting rectangle inside the unit
// square. This is independent of delta clamping: delta clamping bounds
// the requested magnitude, ClampBounds bounds the resulting rectangle.
// Non-spatial edits pass bounds through unchanged. Idempotent: applying
// it to an already-clamped rectangle is a no-op.
func ClampBounds(b dsl.Bounds, e Edit) dsl.Bounds {
	switch e.Op {
	case OpMove:
		b.X = clampRange(b.X+e.DX, 0, 1-b.W)
		b.Y = clampRange(b.Y+e.DY, 0, 1-b.H)
	case OpResize:
		b.W = clampRange(b.W+e.DW, 0, 1-b.X)
		b.H = clampRange(b.H+e.DH, 0, 1-b.Y)
	}
	return b
}

func clampRange(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
