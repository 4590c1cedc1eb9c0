package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/yegors/flight-tracker/internal/config"
	"github.com/yegors/flight-tracker/pkg/logger"
)

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), config.TracingConfig{}, logger.NewNop())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	_, span := otel.Tracer("test").Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
}

func TestInitTracingStdout(t *testing.T) {
	cfg := config.TracingConfig{Enabled: true, Exporter: "stdout", ServiceName: "flight-tracker-test", SampleRatio: 1}
	shutdown, err := InitTracing(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "sampled")
	assert.True(t, span.SpanContext().IsSampled())
	span.End()

	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracingUnknownExporter(t *testing.T) {
	cfg := config.TracingConfig{Enabled: true, Exporter: "zipkin"}
	_, err := InitTracing(context.Background(), cfg, logger.NewNop())
	assert.Error(t, err)
}
