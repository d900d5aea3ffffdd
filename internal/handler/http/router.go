package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tieenbuii/WEB-API/internal/domain"
	"github.com/tieenbuii/WEB-API/pkg/health"
	"github.com/tieenbuii/WEB-API/pkg/middleware"
)

// RouterConfig carries the cross-cutting settings of the router.
type RouterConfig struct {
	Service        string
	ValidateToken  middleware.TokenValidator
	CORS           middleware.CORSConfig
	RateLimit      middleware.RateLimitConfig
	PprofCIDRs     []string
	RequestTimeout time.Duration
}

// NewRouter creates a chi router with every resource route registered.
// ctx bounds background work owned by the middleware chain.
func NewRouter(ctx context.Context, f *Factory, healthHandler *health.Handler, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(cfg.Service))
	r.Use(middleware.Tracing())

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	authenticated := middleware.Authenticate(cfg.ValidateToken)
	staff := middleware.RequireRole(domain.RoleEmployee, domain.RoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimit.RPS > 0 {
			r.Use(middleware.RateLimit(ctx, cfg.RateLimit, logger))
		}
		r.Use(middleware.Identify(cfg.ValidateToken))
		r.Use(middleware.RequestLogger(logger))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", f.GetAll(domain.Product))
			r.With(authenticated, staff).Get("/table", f.GetTable(domain.Product))
			r.Get("/{id}", f.GetOne(domain.Product))
			r.Group(func(r chi.Router) {
				r.Use(authenticated, staff)
				r.Post("/", f.CreateOne(domain.Product))
				r.Patch("/{id}", f.UpdateOne(domain.Product))
				r.Delete("/{id}", f.DeleteOne(domain.Product))
			})

			r.Route("/{productId}/reviews", func(r chi.Router) {
				r.Get("/", f.GetAll(domain.Review))
				r.With(authenticated).Post("/", f.CreateOne(domain.Review))
			})
			r.Route("/{productId}/comments", func(r chi.Router) {
				r.Get("/", f.GetAll(domain.Comment))
				r.With(authenticated).Post("/", f.CreateOne(domain.Comment))
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(authenticated)
			r.Post("/", f.CreateOne(domain.Order))
			r.With(staff).Get("/", f.GetAll(domain.Order))
			r.With(staff).Get("/table", f.GetTable(domain.Order))
			ownedRoutes(r, f, domain.Order, staff)
		})

		r.Route("/imports", func(r chi.Router) {
			r.Use(authenticated, staff)
			r.Post("/", f.CreateOne(domain.Import))
			r.Get("/", f.GetAll(domain.Import))
			r.Get("/table", f.GetTable(domain.Import))
			r.Get("/{id}", f.GetOne(domain.Import))
			r.Patch("/{id}", f.UpdateOne(domain.Import))
			r.Delete("/{id}", f.DeleteOne(domain.Import))
		})

		for _, e := range []domain.Entity{domain.Review, domain.Comment} {
			r.Route("/"+e.Collection(), func(r chi.Router) {
				r.Get("/", f.GetAll(e))
				r.With(authenticated, staff).Get("/table", f.GetTable(e))
				r.Get("/{id}", f.GetOne(e))
				r.With(authenticated).Post("/", f.CreateOne(e))
				r.Group(func(r chi.Router) {
					r.Use(authenticated)
					r.With(f.CheckPermission(e)).Patch("/{id}", f.UpdateOne(e))
					r.With(f.CheckPermission(e)).Delete("/{id}", f.DeleteOne(e))
				})
			})
		}

		r.Route("/users", func(r chi.Router) {
			r.Use(authenticated)
			r.With(staff).Post("/", f.CreateOne(domain.User))
			r.With(staff).Get("/", f.GetAll(domain.User))
			r.With(staff).Get("/table", f.GetTable(domain.User))
			ownedRoutes(r, f, domain.User)
		})
	})

	return r
}

// ownedRoutes registers the single-record routes behind the ownership guard.
// writeGuards further restrict PATCH and DELETE.
func ownedRoutes(r chi.Router, f *Factory, e domain.Entity, writeGuards ...func(http.Handler) http.Handler) {
	r.Route("/{id}", func(r chi.Router) {
		r.Use(f.CheckPermission(e))
		r.Get("/", f.GetOne(e))
		r.With(writeGuards...).Patch("/", f.UpdateOne(e))
		r.With(writeGuards...).Delete("/", f.DeleteOne(e))
	})
}
