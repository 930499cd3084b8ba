package pipeline

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/vintera/labelforge/internal/fault"
	"github.com/vintera/labelforge/internal/llm"
)

// ImagePromptSpec is one artwork request for the image model.
type ImagePromptSpec struct {
	AssetID     string `json:"assetId"`
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

// maxImagePrompts caps how much artwork one label requests.
const maxImagePrompts = 4

func promptsSchema() *jsonschema.Schema {
	one := &jsonschema.Schema{
		Type:     "object",
		Required: []string{"assetId", "prompt"},
		Properties: map[string]*jsonschema.Schema{
			"assetId":     {Type: "string", Pattern: `^[a-z][a-z0-9-]*$`},
			"prompt":      {Type: "string", MinLength: intPtr(1)},
			"aspectRatio": {Type: "string", Enum: []any{"1:1", "3:4", "4:3", "9:16", "16:9"}},
		},
	}
	max := maxImagePrompts
	return &jsonschema.Schema{
		Type:     "object",
		Required: []string{"prompts"},
		Properties: map[string]*jsonschema.Schema{
			"prompts": {Type: "array", Items: one, MaxItems: &max},
		},
	}
}

func intPtr(v int) *int { return &v }

const promptsInstructions = `Write image-generation prompts for the
artwork this wine label needs. One prompt per distinct visual asset
(background texture, hero illustration, crest or ornament). Use short
lowercase kebab-case asset ids. Do not include any text or lettering in
the artwork prompts.`

// ImagePromptsStep turns the scheme into concrete artwork prompts.
func (p *Pipeline) ImagePromptsStep(ctx context.Context, sub Submission, scheme *DesignScheme) ([]ImagePromptSpec, error) {
	ctx, span := p.startSpan(ctx, llm.StepImagePrompts)

	prompt := fmt.Sprintf("%s\n\n%s\n\nMood: %s\nPalette temperature: %s",
		promptsInstructions, sub.Describe(), scheme.Mood, scheme.Palette.Temperature)

	var out struct {
		Prompts []ImagePromptSpec `json:"prompts"`
	}
	err := p.invoker.InvokeStructured(ctx, llm.StructuredRequest{
		Step:   llm.StepImagePrompts,
		Prompt: prompt,
		Schema: promptsSchema(),
	}, &out)
	endSpan(span, err)
	if err != nil {
		return nil, err
	}
	if len(out.Prompts) == 0 {
		return nil, fault.Validation("model proposed no artwork prompts").
			With("step", llm.StepImagePrompts)
	}

	for i := range out.Prompts {
		if out.Prompts[i].AspectRatio == "" {
			out.Prompts[i].AspectRatio = p.cfg.AspectRatio
		}
	}
	return out.Prompts, nil
}
