package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	apperrors "github.com/tieenbuii/WEB-API/pkg/errors"
	"github.com/tieenbuii/WEB-API/pkg/logger"
	"github.com/tieenbuii/WEB-API/pkg/validator"
)

// Envelope status values.
const (
	StatusSuccess = "success"
	StatusFail    = "fail"
	StatusError   = "error"
)

// Response is the JSON envelope written by every resource handler.
type Response struct {
	Status  string `json:"status"`
	Results *int   `json:"results,omitempty"`
	Data    any    `json:"data"`
}

// ErrorResponse is the envelope for failed requests. Status is "fail" for
// client errors and "error" for server faults.
type ErrorResponse struct {
	Status    string            `json:"status"`
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteSuccess wraps data in a success envelope. A 204 writes the status line
// only, since the protocol forbids a body.
func WriteSuccess(w http.ResponseWriter, status int, data any) {
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	WriteJSON(w, status, Response{Status: StatusSuccess, Data: data})
}

// WriteList writes a success envelope that also reports the result count.
func WriteList(w http.ResponseWriter, results int, data any) {
	WriteJSON(w, http.StatusOK, Response{Status: StatusSuccess, Results: &results, Data: data})
}

// WriteError is the single error responder. It maps the error to a status,
// renders the envelope and logs server faults with the request-scoped logger
// when the RequestLogger middleware put one in the context.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}
	requestID := logger.CorrelationIDFromContext(r.Context())

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Status:    StatusFail,
			Code:      "VALIDATION_ERROR",
			Message:   valErr.Error(),
			Fields:    valErr.Fields(),
			RequestID: requestID,
		})
		return
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = fromSentinel(err)
	}

	if appErr.Status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, appErr.Status, ErrorResponse{
		Status:    statusFor(appErr.Status),
		Code:      appErr.Code,
		Message:   appErr.Message,
		RequestID: requestID,
	})
}

func fromSentinel(err error) *apperrors.AppError {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return apperrors.NotFound()
	case errors.Is(err, apperrors.ErrForbidden):
		return apperrors.Forbidden()
	case errors.Is(err, apperrors.ErrUnauthorized):
		return apperrors.Unauthorized("")
	case errors.Is(err, apperrors.ErrInvalidInput), errors.Is(err, apperrors.ErrInvalidFilter):
		return apperrors.InvalidInput(err.Error())
	case errors.Is(err, apperrors.ErrBusinessRule), errors.Is(err, apperrors.ErrInsufficient):
		return apperrors.BusinessRuleViolation(err.Error(), nil)
	}
	status := apperrors.HTTPStatus(err)
	if status < http.StatusInternalServerError {
		return &apperrors.AppError{Code: http.StatusText(status), Message: err.Error(), Status: status, Err: err}
	}
	return &apperrors.AppError{
		Code:    "INTERNAL_ERROR",
		Message: apperrors.MsgInternal,
		Status:  status,
		Err:     err,
	}
}

func statusFor(code int) string {
	if code >= http.StatusInternalServerError {
		return StatusError
	}
	return StatusFail
}

// DecodeJSON reads the request body into dst. An empty body leaves dst untouched.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperrors.InvalidInput(fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}
