// Package llm wraps model access for the pipeline: raw text generation,
// image generation, and structured invocation with schema validation and
// bounded self-repair.
//
// Clients are capability interfaces with production (genai) and mock
// variants selected via configuration, never via runtime type inspection.
package llm

import "context"

// ImageAttachment carries inline image bytes for vision-capable calls.
type ImageAttachment struct {
	Data     []byte
	MIMEType string
}

// GenerateRequest asks a model for raw text.
type GenerateRequest struct {
	Model       string
	Temperature float32
	Prompt      string
	Image       *ImageAttachment // optional; nil for text-only calls
}

// Client is the swappable language-model client. It returns the raw
// response text; JSON extraction and validation happen in this package,
// not in the transport.
type Client interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// ImageRequest asks an image model for one rendered image.
type ImageRequest struct {
	Model       string
	Prompt      string
	AspectRatio string // e.g. "1:1", "3:4"
}

// ImageClient is the swappable image-generation client.
type ImageClient interface {
	GenerateImage(ctx context.Context, req ImageRequest) ([]byte, error)
}

// Pipeline step names used for per-step model selection.
const (
	StepDesignScheme   = "design-scheme"
	StepImagePrompts   = "image-prompts"
	StepImageGenerate  = "image-generate"
	StepDetailedLayout = "detailed-layout"
	StepRefine         = "refine"
)

// StepSettings selects the provider, model and sampling for one step.
type StepSettings struct {
	Provider    string  `mapstructure:"provider" json:"provider"`
	Model       string  `mapstructure:"model" json:"model"`
	Temperature float32 `mapstructure:"temperature" json:"temperature"`

	// Vision marks the model as accepting image input; the refinement
	// loop falls back to text-only proposals when false.
	Vision bool `mapstructure:"vision" json:"vision"`
}

// Settings maps step names to model settings. Lookup falls back to the
// "default" entry so one model can drive every step.
type Settings map[string]StepSettings

// For returns the settings for a step, falling back to "default".
func (s Settings) For(step string) StepSettings {
	if st, ok := s[step]; ok {
		return st
	}
	return s["default"]
}

// DefaultSettings returns a single-model configuration suitable for
// development.
func DefaultSettings() Settings {
	return Settings{
		"default": {Provider: "gemini", Model: "gemini-2.5-flash", Temperature: 0.7},
		StepImageGenerate: {
			Provider: "gemini", Model: "imagen-3.0-generate-002",
		},
		StepRefine: {
			Provider: "gemini", Model: "gemini-2.5-flash", Temperature: 0.4, Vision: true,
		},
	}
}
