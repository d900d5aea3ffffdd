package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/tieenbuii/WEB-API/pkg/errors"
	"github.com/tieenbuii/WEB-API/pkg/logger"
)

func stubValidator(token string) (Caller, error) {
	switch token {
	case "admin-token":
		return Caller{ID: "u-admin", Role: "admin"}, nil
	case "user-token":
		return Caller{ID: "u-1", Role: "user"}, nil
	}
	return Caller{}, errors.New("bad token")
}

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"invalid token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer user-token", http.StatusOK},
		{"case insensitive scheme", "bearer user-token", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Caller
			h := Authenticate(stubValidator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = CallerFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "u-1", got.ID)
			} else {
				assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Code)
			}
		})
	}
}

func TestAuthenticate_SetsLoggerCaller(t *testing.T) {
	var id, role string
	h := Authenticate(stubValidator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, role = logger.CallerFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "u-admin", id)
	assert.Equal(t, "admin", role)
}

func TestIdentify_AnonymousPassesThrough(t *testing.T) {
	var authed bool
	h := Identify(stubValidator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, authed = CallerFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, authed)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, authed)
}

func TestRequireRole(t *testing.T) {
	chain := func() http.Handler {
		return Authenticate(stubValidator)(RequireRole("admin")(okHandler()))
	}

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	rec := httptest.NewRecorder()
	chain().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, apperrors.MsgForbidden, decodeError(t, rec).Message)

	req = httptest.NewRequest(http.MethodDelete, "/", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rec = httptest.NewRecorder()
	chain().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole_NoCaller(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireRole("admin")(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
