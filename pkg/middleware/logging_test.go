package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tieenbuii/WEB-API/pkg/logger"
)

func TestRequestLogging_GeneratesCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewWithWriter(logger.Options{Service: "test"}, &buf)

	var seen string
	h := RequestLogging(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.CorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("abc"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/products", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(CorrelationHeader))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "http request", line["msg"])
	assert.Equal(t, float64(http.StatusCreated), line["status"])
	assert.Equal(t, float64(3), line["bytes"])
	assert.Equal(t, "/api/v1/products", line["path"])
}

func TestRequestLogging_KeepsIncomingCorrelationID(t *testing.T) {
	h := RequestLogging(discardLogger())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationHeader, "corr-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "corr-42", rec.Header().Get(CorrelationHeader))
}

func TestStatusRecorder(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := newStatusRecorder(rec)

	sr.WriteHeader(http.StatusNotFound)
	sr.WriteHeader(http.StatusOK)
	_, _ = sr.Write([]byte("hello"))
	sr.Flush()

	assert.Equal(t, http.StatusNotFound, sr.status)
	assert.Equal(t, 5, sr.bytes)
	assert.True(t, rec.Flushed)
	assert.Same(t, rec, sr.Unwrap())
}

func TestStatusRecorder_DefaultsTo200(t *testing.T) {
	sr := newStatusRecorder(httptest.NewRecorder())
	_, _ = sr.Write([]byte("x"))
	assert.Equal(t, http.StatusOK, sr.status)
}
