package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/secondchance/secondchance/internal/handler"
	"github.com/secondchance/secondchance/internal/middleware"
)

// RouterDeps holds everything the router mounts.
type RouterDeps struct {
	Logger  *slog.Logger
	Health  *handler.HealthHandler
	Metrics *handler.MetricsHandler
	Auth    *handler.AuthHandler
	Items   *handler.ItemHandler

	// AuthRateLimit guards /api/auth. A nil Limiter disables it.
	AuthRateLimit middleware.RateLimitConfig

	Security       middleware.SecurityConfig
	CORS           middleware.CORSConfig
	MaxRequestBody int64
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	h := handler.New()
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Recoverer(deps.Logger))
	r.Use(middleware.Security(deps.Security))
	r.Use(middleware.CORS(deps.CORS))

	// Probes
	r.Get("/healthz", deps.Health.Healthz)
	r.Get("/readyz", deps.Health.Readyz)
	if deps.Metrics != nil {
		r.Get("/metrics", deps.Metrics.Metrics)
	}

	r.Group(func(r chi.Router) {
		if deps.MaxRequestBody > 0 {
			r.Use(middleware.MaxBodySize(deps.MaxRequestBody))
		}

		r.Route("/api/auth", func(r chi.Router) {
			r.Use(middleware.RateLimitIP(deps.AuthRateLimit))

			r.Post("/register", deps.Auth.Register)
			r.Post("/login", deps.Auth.Login)
			r.Put("/update", deps.Auth.Update)
		})

		r.Route("/api/secondchance", func(r chi.Router) {
			r.Get("/items", deps.Items.List)
			r.Post("/items", deps.Items.Create)
			r.Get("/items/{id}", deps.Items.Get)
			r.Put("/items/{id}", deps.Items.Update)
			r.Delete("/items/{id}", deps.Items.Delete)
			r.Get("/search", deps.Items.Search)
		})
	})

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
