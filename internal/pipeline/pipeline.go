// Package pipeline implements the label-generation steps: design-scheme,
// image-prompts, image-generate, detailed-layout and render, plus the
// Generator that composes a full run. Each step takes typed input and
// returns typed, schema-validated output or a classified error.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vintera/labelforge/internal/assets"
	"github.com/vintera/labelforge/internal/fault"
	"github.com/vintera/labelforge/internal/llm"
	"github.com/vintera/labelforge/internal/render"
)

const tracerName = "github.com/vintera/labelforge/internal/pipeline"

// Submission is the wine description a run starts from.
type Submission struct {
	WineName   string `json:"wineName"`
	Winery     string `json:"winery"`
	Varietal   string `json:"varietal"`
	Vintage    int    `json:"vintage"`
	Region     string `json:"region"`
	StyleNotes string `json:"styleNotes"`
}

// Describe renders the submission as prompt text.
func (s Submission) Describe() string {
	out := fmt.Sprintf("Wine: %s", s.WineName)
	if s.Winery != "" {
		out += fmt.Sprintf("\nWinery: %s", s.Winery)
	}
	if s.Varietal != "" {
		out += fmt.Sprintf("\nVarietal: %s", s.Varietal)
	}
	if s.Vintage != 0 {
		out += fmt.Sprintf("\nVintage: %d", s.Vintage)
	}
	if s.Region != "" {
		out += fmt.Sprintf("\nRegion: %s", s.Region)
	}
	if s.StyleNotes != "" {
		out += fmt.Sprintf("\nStyle notes: %s", s.StyleNotes)
	}
	return out
}

// Check validates the minimum a run needs.
func (s Submission) Check() error {
	if s.WineName == "" {
		return fault.Validation("submission requires a wine name")
	}
	return nil
}

// Uploader stores generated image bytes; *assets.Uploader in production.
type Uploader interface {
	UploadImage(ctx context.Context, generationID uuid.UUID, assetID string, data []byte, checksum string) (assets.ImageAsset, error)
}

// Config bounds a run.
type Config struct {
	// ImageWorkers caps concurrent image generations for one submission.
	ImageWorkers int
	// AspectRatio requested from the image model when a prompt spec
	// leaves it empty.
	AspectRatio string
}

// DefaultConfig returns the run bounds used when the config file is
// silent.
func DefaultConfig() Config {
	return Config{ImageWorkers: 3, AspectRatio: "3:4"}
}

// Pipeline holds the adapters every step calls. All adapters are
// capability interfaces with production and mock variants selected by
// configuration.
type Pipeline struct {
	invoker  *llm.Invoker
	images   llm.ImageClient
	uploader Uploader
	renderer render.Renderer
	settings llm.Settings
	retry    fault.RetryConfig
	cfg      Config
	logger   *slog.Logger
	tracer   trace.Tracer
}

// New wires a Pipeline. logger may be nil.
func New(invoker *llm.Invoker, images llm.ImageClient, uploader Uploader, renderer render.Renderer,
	settings llm.Settings, retry fault.RetryConfig, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ImageWorkers < 1 {
		cfg.ImageWorkers = 1
	}
	return &Pipeline{
		invoker:  invoker,
		images:   images,
		uploader: uploader,
		renderer: renderer,
		settings: settings,
		retry:    retry,
		cfg:      cfg,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}
}

// startSpan opens the per-step span.
func (p *Pipeline) startSpan(ctx context.Context, step string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "pipeline."+step, trace.WithAttributes(attrs...))
}

// endSpan records the step outcome.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
