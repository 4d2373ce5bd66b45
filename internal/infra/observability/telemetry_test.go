package observability

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestNewTelemetryProvider_Disabled(t *testing.T) {
	cfg := &Config{Enabled: false}
	var buf bytes.Buffer

	provider, err := NewTelemetryProvider(cfg, slog.Default(), &buf)

	require.NoError(t, err)
	require.NotNil(t, provider)
	assert.Nil(t, provider.provider)
	assert.NotNil(t, provider.tracer)

	// A no-op tracer still returns a usable span.
	_, span := provider.CreateSpan(context.Background(), "block")
	span.End()

	assert.Empty(t, buf.String(), "disabled provider must not write any spans")
}

func TestNewTelemetryProvider_Enabled(t *testing.T) {
	cfg := &Config{
		Enabled:       true,
		ServiceName:   "test-service",
		Environment:   "test",
		Version:       "1.0.0",
		SamplingRatio: 1.0,
	}
	var buf bytes.Buffer

	provider, err := NewTelemetryProvider(cfg, slog.Default(), &buf)
	require.NoError(t, err)
	require.NotNil(t, provider)
	assert.NotNil(t, provider.tracer)
	assert.NotNil(t, provider.provider)

	ctx, span := provider.CreateSpan(context.Background(), "block", attribute.Int("block.index", 3))
	span.End()
	assert.NotNil(t, ctx)

	require.NoError(t, provider.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "block")
}

func TestTelemetryProvider_ShutdownIdempotentWhenDisabled(t *testing.T) {
	cfg := &Config{Enabled: false}
	provider, err := NewTelemetryProvider(cfg, slog.Default(), &bytes.Buffer{})
	require.NoError(t, err)

	assert.NoError(t, provider.Shutdown(context.Background()))
	assert.NoError(t, provider.Shutdown(context.Background()))
}
