package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestNew_ServiceField(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Options{Service: "web-api", Level: "info"}, &buf)
	l.Info("hello")

	out := decodeLine(t, &buf)
	assert.Equal(t, "web-api", out["service"])
	assert.Equal(t, "hello", out["msg"])
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Options{Service: "web-api", Format: "text"}, &buf)
	l.Info("plain")

	assert.True(t, strings.Contains(buf.String(), "msg=plain"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Options{Service: "x", Level: "error"}, &buf)
	l.Info("dropped")
	assert.Empty(t, buf.String())
}

func TestWithContext_CorrelationAndCaller(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Options{Service: "x"}, &buf)

	ctx := WithCorrelationID(context.Background(), "req-123")
	ctx = WithCaller(ctx, "user-789", "admin")
	WithContext(ctx, l).Info("hello")

	out := decodeLine(t, &buf)
	assert.Equal(t, "req-123", out["correlation_id"])
	assert.Equal(t, "user-789", out["user_id"])
	assert.Equal(t, "admin", out["role"])
}

func TestWithContext_NoCaller(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Options{Service: "x"}, &buf)
	WithContext(context.Background(), l).Info("anon")

	out := decodeLine(t, &buf)
	assert.NotContains(t, out, "user_id")
	assert.NotContains(t, out, "trace_id")
}

func TestWithContext_WithValidSpan(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Options{Service: "x"}, &buf)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	WithContext(ctx, l).Info("with span")

	out := decodeLine(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", out["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", out["span_id"])
}

func TestFromContext(t *testing.T) {
	l := NewWithWriter(Options{Service: "x"}, &bytes.Buffer{})
	assert.Same(t, l, FromContext(NewContext(context.Background(), l)))
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}

func TestCallerFromContext_Empty(t *testing.T) {
	id, role := CallerFromContext(context.Background())
	assert.Empty(t, id)
	assert.Empty(t, role)
}
