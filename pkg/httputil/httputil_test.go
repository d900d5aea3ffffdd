package httputil

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/tieenbuii/WEB-API/pkg/errors"
	"github.com/tieenbuii/WEB-API/pkg/logger"
	"github.com/tieenbuii/WEB-API/pkg/validator"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestWriteSuccess_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, http.StatusCreated, map[string]any{"id": "p1"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, map[string]any{"id": "p1"}, body["data"])
	assert.NotContains(t, body, "results")
}

func TestWriteSuccess_NoContentHasNoBody(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, http.StatusNoContent, nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestWriteList_IncludesResults(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteList(rec, 0, map[string]any{"data": []any{}})

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, float64(0), body["results"])
}

func TestWriteError_Statuses(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantState  string
	}{
		{"app not found", apperrors.NotFound(), http.StatusNotFound, "NOT_FOUND", StatusFail},
		{"sentinel not found", fmt.Errorf("find: %w", apperrors.ErrNotFound), http.StatusNotFound, "NOT_FOUND", StatusFail},
		{"forbidden", apperrors.ErrForbidden, http.StatusForbidden, "FORBIDDEN", StatusFail},
		{"insufficient stock", apperrors.InsufficientStock("Áo"), http.StatusUnprocessableEntity, "BUSINESS_RULE_VIOLATION", StatusFail},
		{"invalid filter", apperrors.ErrInvalidFilter, http.StatusBadRequest, "INVALID_INPUT", StatusFail},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL_ERROR", StatusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
			WriteError(rec, req, tt.err, testLogger())

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, tt.wantState, resp.Status)
		})
	}
}

func TestWriteError_LocalizedMessages(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/x", nil)
	WriteError(rec, req, apperrors.ErrNotFound, testLogger())

	assert.Equal(t, apperrors.MsgNotFound, decodeError(t, rec).Message)
}

func TestWriteError_InternalHidesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	WriteError(rec, req, fmt.Errorf("pq: password authentication failed"), testLogger())

	resp := decodeError(t, rec)
	assert.NotContains(t, resp.Message, "password")
}

func TestWriteError_ValidationFields(t *testing.T) {
	type body struct {
		Rating int `json:"rating" validate:"gte=1,lte=5"`
	}
	err := validator.Validate(body{Rating: 7})
	require.Error(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	WriteError(rec, req, fmt.Errorf("save review: %w", err), testLogger())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	assert.Contains(t, resp.Fields, "rating")
}

func TestWriteError_IncludesRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(logger.WithCorrelationID(context.Background(), "corr-1"))

	WriteError(rec, req, apperrors.Forbidden(), testLogger())
	assert.Equal(t, "corr-1", decodeError(t, rec).RequestID)
}

func TestDecodeJSON(t *testing.T) {
	var dst map[string]any

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"x","price":10}`))
	require.NoError(t, DecodeJSON(req, &dst))
	assert.Equal(t, "x", dst["title"])
	assert.Equal(t, float64(10), dst["price"])

	empty := httptest.NewRequest(http.MethodPost, "/", nil)
	assert.NoError(t, DecodeJSON(empty, &dst))

	bad := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":`))
	err := DecodeJSON(bad, &dst)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatus(err))
}
