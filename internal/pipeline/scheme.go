package pipeline

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/vintera/labelforge/internal/dsl"
	"github.com/vintera/labelforge/internal/llm"
)

// DesignScheme is the output of the first model step: the visual
// direction every later step works inside.
type DesignScheme struct {
	Palette    dsl.Palette    `json:"palette"`
	Typography dsl.Typography `json:"typography"`
	Mood       string         `json:"mood"`
}

// schemeSchema reuses the DSL's palette and typography sub-schemas so the
// scheme step cannot produce colors or fonts the layout step would later
// reject.
func schemeSchema() *jsonschema.Schema {
	label := dsl.Schema()
	return &jsonschema.Schema{
		Type:     "object",
		Required: []string{"palette", "typography", "mood"},
		Properties: map[string]*jsonschema.Schema{
			"palette":    label.Properties["palette"],
			"typography": label.Properties["typography"],
			"mood":       {Type: "string"},
		},
	}
}

const schemeInstructions = `You are an art director for wine labels.
Design a visual scheme for the wine below: a palette of exactly four hex
colors (primary, secondary, accent, background) with temperature
(warm|cool|neutral) and contrast (high|medium|low), two typefaces
(primary for display, secondary for details) with weights, a hierarchy
(dominant|balanced|subtle), and a one-sentence mood.`

// DesignSchemeStep asks the model for the label's visual direction.
func (p *Pipeline) DesignSchemeStep(ctx context.Context, sub Submission) (*DesignScheme, error) {
	if err := sub.Check(); err != nil {
		return nil, err
	}

	ctx, span := p.startSpan(ctx, llm.StepDesignScheme)
	var scheme DesignScheme
	err := p.invoker.InvokeStructured(ctx, llm.StructuredRequest{
		Step:   llm.StepDesignScheme,
		Prompt: fmt.Sprintf("%s\n\n%s", schemeInstructions, sub.Describe()),
		Schema: schemeSchema(),
	}, &scheme)
	endSpan(span, err)
	if err != nil {
		return nil, err
	}

	p.logger.Info("design scheme ready",
		"wine", sub.WineName,
		"temperature", scheme.Palette.Temperature,
		"hierarchy", scheme.Typography.Hierarchy)
	return &scheme, nil
}
