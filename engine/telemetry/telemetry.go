// Package telemetry installs the OpenTelemetry tracer provider used for the engine's spans.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Exporter names accepted by Setup.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
)

// ErrUnknownExporter is returned when the configured exporter is not supported.
var ErrUnknownExporter = errors.New("telemetry: unknown exporter")

// Config selects where spans go.
type Config struct {
	// ServiceName is reported as service.name on every span.
	ServiceName string
	// Exporter is ExporterNone or ExporterStdout.
	Exporter string
	// Writer receives stdout spans. Nil means os.Stdout.
	Writer io.Writer
}

// Setup installs a global tracer provider for cfg.
// The returned shutdown flushes pending spans and restores the previous provider.
//
// Parameters:
//   - ctx: unused by the stdout exporter, kept for exporters that dial out
//   - cfg: exporter selection
//
// Returns:
//   - func(context.Context) error: flushes and uninstalls the provider
//   - error: ErrUnknownExporter for an unsupported exporter
func Setup(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if cfg.Exporter == "" || cfg.Exporter == ExporterNone {
		return func(context.Context) error { return nil }, nil
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
	)
	tp, err := newTracerProvider(ctx, cfg, res)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		otel.SetTracerProvider(prev)
		return err
	}, nil
}

func newTracerProvider(_ context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.Exporter {
	case ExporterStdout:
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	), nil
}

// Tracer returns the engine tracer for a component, e.g. "renderer" or "graph".
func Tracer(component string) trace.Tracer {
	return otel.Tracer("github.com/Carmen-Shannon/oxy-gfx/engine/" + component)
}
