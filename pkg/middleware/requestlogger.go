package middleware

import (
	"log/slog"
	"net/http"

	"github.com/tieenbuii/WEB-API/pkg/logger"
)

// RequestLogger stores a logger enriched with correlation_id, caller and
// trace ids in the request context. Mount it after RequestLogging, Tracing
// and the auth middleware so those fields are present.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
