package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vintera/labelforge/internal/dsl"
	"github.com/vintera/labelforge/internal/llm"
)

const layoutInstructions = `Lay out this wine label as a JSON document.
The canvas is in pixels; element bounds are normalized fractions of the
canvas in [0,1] with x+w <= 1 and y+h <= 1; z is the stacking order in
[0,1000]. Element colors and fills reference palette roles (primary,
secondary, accent, background), never literal hex values. Every image
element's assetId must be one of the listed asset ids. Include the wine
name, vintage and region as text elements.`

// DetailedLayoutStep asks the model for the full label DSL, constrained
// to the scheme's palette and typography and the stored assets, then
// parses it so defaults are injected and every invariant holds.
func (p *Pipeline) DetailedLayoutStep(ctx context.Context, sub Submission, scheme *DesignScheme, stored []dsl.Asset) (*dsl.LabelDSL, error) {
	ctx, span := p.startSpan(ctx, llm.StepDetailedLayout)

	doc, err := p.invokeLayout(ctx, sub, scheme, stored)
	endSpan(span, err)
	if err != nil {
		return nil, err
	}

	p.logger.Info("detailed layout ready",
		"wine", sub.WineName,
		"elements", len(doc.Elements),
		"assets", len(doc.Assets))
	return doc, nil
}

func (p *Pipeline) invokeLayout(ctx context.Context, sub Submission, scheme *DesignScheme, stored []dsl.Asset) (*dsl.LabelDSL, error) {
	schemeJSON, err := json.Marshal(scheme)
	if err != nil {
		return nil, fmt.Errorf("encoding scheme for prompt: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n\n%s\n\nDesign scheme (use exactly this palette and typography):\n%s\n",
		layoutInstructions, sub.Describe(), schemeJSON)
	if len(stored) > 0 {
		sb.WriteString("\nAvailable assets:\n")
		for _, a := range stored {
			fmt.Fprintf(&sb, "- id=%s url=%s %dx%d\n", a.ID, a.URL, a.Width, a.Height)
		}
	} else {
		sb.WriteString("\nNo image assets are available; use text and shape elements only.\n")
	}

	var raw json.RawMessage
	if err := p.invoker.InvokeStructured(ctx, llm.StructuredRequest{
		Step:   llm.StepDetailedLayout,
		Prompt: sb.String(),
		Schema: dsl.Schema(),
	}, &raw); err != nil {
		return nil, err
	}

	// The stored asset list is authoritative; whatever the model echoed
	// back is replaced before cross-reference validation.
	raw, err = injectAssets(raw, stored)
	if err != nil {
		return nil, err
	}

	// Parse re-validates and also enforces the cross-referential checks
	// the structural schema cannot express.
	return dsl.Parse(raw)
}

func injectAssets(raw json.RawMessage, stored []dsl.Asset) (json.RawMessage, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding layout document: %w", err)
	}
	if stored == nil {
		stored = []dsl.Asset{}
	}
	encoded, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("encoding asset list: %w", err)
	}
	doc["assets"] = encoded
	return json.Marshal(doc)
}
