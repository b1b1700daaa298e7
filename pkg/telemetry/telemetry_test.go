package telemetry

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_WritesSpans(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	var buf bytes.Buffer
	ctx := context.Background()

	shutdown, err := Init(ctx, Settings{ServiceName: "levelgraph-test", ServiceVersion: "dev", Writer: &buf})
	require.NoError(t, err)

	_, span := Tracer("test").Start(ctx, "unit")
	span.End()
	require.NoError(t, shutdown(ctx))

	assert.Contains(t, buf.String(), `"Name":"unit"`)
}

func TestMetrics_Record(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)
	m.Record(context.Background(), "show", nil)
	m.Record(context.Background(), "solve", errors.New("boom"))
}
