package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TelemetryProvider wraps a single OpenTelemetry tracer for the run.
type TelemetryProvider struct {
	config   *Config
	logger   *slog.Logger
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
}

// NewTelemetryProvider builds a tracer writing spans to w (typically the
// process's structured-log sink); when disabled it returns a no-op tracer
// so CreateSpan callers never need a nil check.
func NewTelemetryProvider(cfg *Config, logger *slog.Logger, w io.Writer) (*TelemetryProvider, error) {
	if !cfg.Enabled {
		return &TelemetryProvider{config: cfg, logger: logger, tracer: noop.NewTracerProvider().Tracer("ridehail-sim")}, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithoutTimestamps())
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	var attrs []attribute.KeyValue
	for k, v := range cfg.ResourceAttributes() {
		attrs = append(attrs, attribute.String(k, v))
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SamplingRatio)),
		sdktrace.WithResource(resource.NewSchemaless(attrs...)),
	)
	otel.SetTracerProvider(provider)

	tp := &TelemetryProvider{
		config:   cfg,
		logger:   logger,
		tracer:   provider.Tracer(cfg.ServiceName),
		provider: provider,
	}

	tp.logger.Info("telemetry provider initialized",
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
		slog.Float64("sampling_ratio", cfg.SamplingRatio))

	return tp, nil
}

// CreateSpan starts a span named name, recording any extra attrs.
func (tp *TelemetryProvider) CreateSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tp.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Shutdown flushes and stops the underlying tracer provider. Safe to call
// on a disabled (no-op) provider.
func (tp *TelemetryProvider) Shutdown(ctx context.Context) error {
	if tp.provider == nil {
		return nil
	}
	if err := tp.provider.Shutdown(ctx); err != nil {
		tp.logger.Error("error during telemetry shutdown", slog.String("error", err.Error()))
		return err
	}
	tp.logger.Info("telemetry provider shutdown completed")
	return nil
}
