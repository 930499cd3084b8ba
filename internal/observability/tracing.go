// Package observability provides OpenTelemetry tracing over OTLP/HTTP.
//
// Every pipeline step opens a span; export goes to a local OTLP
// collector (default localhost:4318), which handles authentication and
// forwarding to whatever backend is configured.
package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config for the trace exporter.
type Config struct {
	// Endpoint is the OTLP HTTP endpoint (default: localhost:4318).
	Endpoint string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// ServiceName is the name shown in the tracing backend.
	ServiceName string
}

// DefaultEndpoint is the default local OTLP HTTP collector endpoint.
const DefaultEndpoint = "localhost:4318"

// Setup installs a global TracerProvider exporting over OTLP/HTTP.
// Returns a shutdown function that flushes pending spans. Exporter
// construction failure disables tracing rather than failing startup.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (shutdown func(context.Context) error, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(), // local collector, no TLS
	)
	if err != nil {
		logger.Warn("failed to create trace exporter, tracing disabled", "error", err)
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("building trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	logger.Debug("tracing enabled",
		"endpoint", endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)
	return provider.Shutdown, nil
}
