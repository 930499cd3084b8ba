// Package refine runs the iterative refinement loop: propose edits for
// the current label, sanitize them, apply them, re-render, repeat. The
// loop is strictly sequential because each iteration depends on the
// previous render, and it degrades to best-effort: early termination
// returns the best label obtained so far instead of an error.
package refine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vintera/labelforge/internal/dsl"
	"github.com/vintera/labelforge/internal/edit"
	"github.com/vintera/labelforge/internal/llm"
	"github.com/vintera/labelforge/internal/render"
)

const tracerName = "github.com/vintera/labelforge/internal/refine"

// Defaults for Params left zero.
const (
	DefaultMaxIterations = 2
	DefaultMaxEdits      = 10
	DefaultMaxDelta      = 0.2
)

// Params bounds one refinement run.
type Params struct {
	MaxIterations int
	MaxEdits      int
	MaxDelta      float64
}

func (p Params) withDefaults() Params {
	if p.MaxIterations <= 0 {
		p.MaxIterations = DefaultMaxIterations
	}
	if p.MaxEdits <= 0 {
		p.MaxEdits = DefaultMaxEdits
	}
	if p.MaxDelta <= 0 {
		p.MaxDelta = DefaultMaxDelta
	}
	return p
}

// Input is the starting state for a run.
type Input struct {
	DSL        *dsl.LabelDSL
	Preview    *render.Preview
	PreviewURL string
	// Description gives the model the wine context the label was built
	// from.
	Description string
}

// Outcome is the best state reached plus run totals. Applied and Failed
// accumulate across iterations; Failed counts rejected candidates and
// failed applications.
type Outcome struct {
	DSL        *dsl.LabelDSL
	Preview    *render.Preview
	PreviewURL string
	Iterations int
	Applied    int
	Failed     int
}

// PublishFunc stores a fresh preview and returns its public URL.
type PublishFunc func(ctx context.Context, iteration int, preview *render.Preview) (string, error)

// Loop orchestrates refinement rounds.
type Loop struct {
	invoker  *llm.Invoker
	settings llm.Settings
	renderer render.Renderer
	logger   *slog.Logger
	tracer   trace.Tracer
}

// New wires a Loop. logger may be nil.
func New(invoker *llm.Invoker, settings llm.Settings, renderer render.Renderer, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		invoker:  invoker,
		settings: settings,
		renderer: renderer,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}
}

// proposalSchema wraps the edit schema in the response envelope the
// model fills.
func proposalSchema(maxEdits int) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:     "object",
		Required: []string{"edits"},
		Properties: map[string]*jsonschema.Schema{
			"edits": {Type: "array", Items: edit.Schema(), MaxItems: &maxEdits},
		},
	}
}

const proposeInstructions = `You are reviewing a wine label layout.
Propose small positioning, sizing, color-role or stacking adjustments
that improve balance and readability. Allowed operations:
- {"op":"move","id":<element id>,"dx":<delta>,"dy":<delta>}
- {"op":"resize","id":<element id>,"dw":<delta>,"dh":<delta>}
- {"op":"recolor","id":<element id>,"color":<palette role>}
- {"op":"reorder","id":<element id>,"z":<0..1000>}
Deltas are fractions of the canvas. Only reference existing element ids.
If the layout needs no changes, return {"edits":[]}.`

// Run executes up to MaxIterations refinement rounds. Only the current
// DSL and preview thread across iterations; every other step is a pure
// function of its inputs.
func (l *Loop) Run(ctx context.Context, in Input, params Params, publish PublishFunc) (*Outcome, error) {
	if in.DSL == nil {
		return nil, fmt.Errorf("refinement requires a starting label")
	}
	params = params.withDefaults()

	ctx, span := l.tracer.Start(ctx, "refine.run",
		trace.WithAttributes(attribute.Int("refine.max_iterations", params.MaxIterations)))
	defer span.End()

	out := &Outcome{DSL: in.DSL, Preview: in.Preview, PreviewURL: in.PreviewURL}

	for i := 0; i < params.MaxIterations; i++ {
		candidates, err := l.propose(ctx, out.DSL, out.Preview, in.Description, params.MaxEdits)
		if err != nil {
			// Best effort: keep what we have rather than discarding the
			// label over a failed proposal round.
			l.logger.Warn("refinement proposal failed, keeping current label",
				"iteration", i+1, "error", err)
			break
		}
		if len(candidates) == 0 {
			l.logger.Debug("model proposed no edits", "iteration", i+1)
			break
		}

		result := edit.ValidateAndClamp(candidates, edit.Limits{
			MaxEdits:           params.MaxEdits,
			MaxDelta:           params.MaxDelta,
			ExistingElementIDs: elementIDs(out.DSL),
		})
		out.Failed += len(result.Rejected)
		if len(result.Valid) == 0 {
			l.logger.Debug("no candidates survived validation",
				"iteration", i+1, "rejected", len(result.Rejected))
			break
		}

		applied := edit.Apply(out.DSL, result.Valid)
		out.Applied += len(applied.Applied)
		out.Failed += len(applied.Failed)
		if len(applied.Applied) == 0 {
			l.logger.Debug("no edits applied", "iteration", i+1)
			break
		}
		out.DSL = applied.Updated
		out.Iterations = i + 1

		preview, err := l.renderer.Render(ctx, out.DSL)
		if err != nil {
			l.logger.Warn("re-render failed, keeping current label",
				"iteration", i+1, "error", err)
			break
		}
		out.Preview = preview

		if publish != nil {
			url, err := publish(ctx, i+1, preview)
			if err != nil {
				l.logger.Warn("publishing preview failed", "iteration", i+1, "error", err)
				break
			}
			out.PreviewURL = url
		}

		l.logger.Info("refinement iteration complete",
			"iteration", i+1,
			"applied", editStrings(applied.Applied),
			"failed", len(applied.Failed),
			"clamped", len(result.Clamped))
	}

	span.SetAttributes(
		attribute.Int("refine.iterations", out.Iterations),
		attribute.Int("refine.applied", out.Applied),
		attribute.Int("refine.failed", out.Failed))
	return out, nil
}

// propose asks the model for candidate edits. A vision-capable model is
// shown the preview image; otherwise the DSL text alone drives the
// proposals.
func (l *Loop) propose(ctx context.Context, doc *dsl.LabelDSL, preview *render.Preview, description string, maxEdits int) ([]json.RawMessage, error) {
	docJSON, err := doc.Serialize()
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf("%s\n\nWine context:\n%s\n\nCurrent layout:\n%s",
		proposeInstructions, description, docJSON)

	var image *llm.ImageAttachment
	if l.settings.For(llm.StepRefine).Vision && preview != nil {
		image = &llm.ImageAttachment{Data: preview.Data, MIMEType: preview.MIMEType}
		prompt += "\n\nThe attached image is the current rendered preview."
	}

	var out struct {
		Edits []json.RawMessage `json:"edits"`
	}
	if err := l.invoker.InvokeStructured(ctx, llm.StructuredRequest{
		Step:   llm.StepRefine,
		Prompt: prompt,
		Image:  image,
		Schema: proposalSchema(maxEdits),
	}, &out); err != nil {
		return nil, err
	}
	return out.Edits, nil
}

func elementIDs(d *dsl.LabelDSL) []string {
	ids := make([]string, len(d.Elements))
	for i, el := range d.Elements {
		ids[i] = el.ID
	}
	return ids
}

// editStrings renders applied edits compactly for the iteration log.
func editStrings(edits []edit.Edit) []string {
	out := make([]string, len(edits))
	for i, e := range edits {
		out[i] = e.String()
	}
	return out
}
