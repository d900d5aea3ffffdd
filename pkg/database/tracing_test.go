package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return exporter
}

func spanAttrs(s tracetest.SpanStub) map[string]string {
	attrs := make(map[string]string)
	for _, a := range s.Attributes {
		attrs[string(a.Key)] = a.Value.Emit()
	}
	return attrs
}

func TestTraceQuery_RecordsPostgresSpan(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := TraceQuery(context.Background(), "FindByID", "SELECT data FROM documents WHERE id = $1")
	end(nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "db.FindByID", spans[0].Name)
	attrs := spanAttrs(spans[0])
	assert.Equal(t, SystemPostgres, attrs["db.system"])
	assert.Equal(t, "FindByID", attrs["db.operation"])
}

func TestTrace_MongoErrorStatus(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := Trace(context.Background(), SystemMongo, "Find", "products")
	end(errors.New("server selection timeout"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, SystemMongo, spanAttrs(spans[0])["db.system"])
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}

func TestSlowQueryLogging(t *testing.T) {
	setupTestTracer(t)

	var buf bytes.Buffer
	SetSlowQueryLogging(time.Nanosecond, slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })

	_, end := TraceQuery(context.Background(), "Count", "SELECT COUNT(*) FROM documents")
	end(errors.New("canceling statement"))

	out := buf.String()
	assert.Contains(t, out, "slow query detected")
	assert.Contains(t, out, "Count")
	assert.Contains(t, out, "canceling statement")
}

func TestSlowQueryLogging_BelowThreshold(t *testing.T) {
	setupTestTracer(t)

	var buf bytes.Buffer
	SetSlowQueryLogging(time.Hour, slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })

	_, end := TraceQuery(context.Background(), "Fast", "SELECT 1")
	end(nil)
	assert.Empty(t, buf.String())
}
