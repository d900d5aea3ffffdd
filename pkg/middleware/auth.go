package middleware

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/tieenbuii/WEB-API/pkg/errors"
	"github.com/tieenbuii/WEB-API/pkg/httputil"
	"github.com/tieenbuii/WEB-API/pkg/logger"
)

type contextKeyType string

const callerKey contextKeyType = "caller"

// Caller is the authenticated principal of a request.
type Caller struct {
	ID   string
	Role string
}

// TokenValidator validates a bearer token and returns its caller.
type TokenValidator func(token string) (Caller, error)

// Authenticate rejects requests without a valid bearer token and stores the
// caller in the request context.
func Authenticate(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				httputil.WriteError(w, r, apperrors.Unauthorized(""), nil)
				return
			}
			caller, err := validate(token)
			if err != nil || caller.ID == "" {
				httputil.WriteError(w, r, apperrors.Unauthorized("invalid or expired token"), nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// Identify attaches the caller when a valid token is present and lets
// anonymous requests through.
func Identify(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := bearerToken(r); ok {
				if caller, err := validate(token); err == nil && caller.ID != "" {
					r = r.WithContext(WithCaller(r.Context(), caller))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole allows only callers whose role is in roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := CallerFromContext(r.Context())
			if !ok {
				httputil.WriteError(w, r, apperrors.Unauthorized(""), nil)
				return
			}
			if _, ok := allowed[caller.Role]; !ok {
				httputil.WriteError(w, r, apperrors.Forbidden(), nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// WithCaller stores caller in ctx for handlers and for log enrichment.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	ctx = context.WithValue(ctx, callerKey, caller)
	return logger.WithCaller(ctx, caller.ID, caller.Role)
}

// CallerFromContext returns the caller stored by Authenticate or Identify.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey).(Caller)
	return c, ok
}
