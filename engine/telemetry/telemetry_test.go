package telemetry

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupNone(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Exporter: ExporterNone})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupStdoutWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(context.Background(), Config{ServiceName: "oxy-gfx-test", Exporter: ExporterStdout, Writer: &buf})
	require.NoError(t, err)

	_, span := Tracer("renderer").Start(context.Background(), "renderer.rebuild")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "renderer.rebuild")
	assert.Contains(t, buf.String(), "oxy-gfx-test")
}

func TestSetupUnknownExporter(t *testing.T) {
	_, err := Setup(context.Background(), Config{Exporter: "jaeger"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownExporter))
}
