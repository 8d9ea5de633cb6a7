// Package router assembles the HTTP routes and middleware chain.
package router

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/tokenapi/tokenapi/internal/handler"
	"github.com/tokenapi/tokenapi/internal/middleware"
)

// Config carries the handlers and middleware settings the routes need.
type Config struct {
	Logger *slog.Logger

	Accounts *handler.AccountHandler
	Orders   *handler.OrderHandler
	Catalog  *handler.CatalogHandler
	Admin    *handler.AdminHandler
	Health   *handler.HealthHandler
	Metrics  *handler.MetricsHandler

	Authenticator middleware.Authenticator
	// AuthMinDuration pads every token check to a constant duration.
	AuthMinDuration time.Duration
	LoginRateLimit  middleware.RateLimitConfig

	Security middleware.SecurityConfig
	CORS     middleware.CORSConfig

	// TrustProxyHeaders takes the client address from X-Forwarded-For or
	// X-Real-IP. Enable it only behind a proxy that overwrites them.
	TrustProxyHeaders bool
}

// New builds the router. Paths keep their trailing slash.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	if cfg.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.Security(cfg.Security))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.MaxBodySize(cfg.Security.MaxRequestBodySize))

	// Probes and metrics
	r.Get("/healthz", cfg.Health.Healthz)
	r.Get("/readyz", cfg.Health.Readyz)
	r.Get("/metrics", cfg.Metrics.Metrics)

	authn := middleware.Auth(middleware.AuthConfig{
		Logger:        cfg.Logger,
		Authenticator: cfg.Authenticator,
		MinDuration:   cfg.AuthMinDuration,
	})

	// Accounts
	r.Post("/create/", cfg.Accounts.CreateUser)
	r.With(middleware.RateLimitLogin(cfg.LoginRateLimit)).Post("/api-token-auth/", cfg.Accounts.Login)

	r.Group(func(r chi.Router) {
		r.Use(authn)

		r.Post("/api-token-logout/", cfg.Accounts.Logout)
		r.Get("/data/", cfg.Accounts.Session)
		r.Get("/users/", cfg.Accounts.ListUsers)
		r.Get("/users/{id:[0-9]+}/", cfg.Accounts.GetUser)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", cfg.Orders.List)
			r.Post("/", cfg.Orders.Create)
			r.Get("/{id}/", cfg.Orders.Get)
			r.Put("/{id}/", cfg.Orders.Update)
			r.Patch("/{id}/", cfg.Orders.Patch)
			r.Delete("/{id}/", cfg.Orders.Delete)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireStaff)
			r.Get("/tokens/", cfg.Admin.ListTokens)
			r.Post("/tokens/{key}/deactivate/", cfg.Admin.DeactivateToken)
			r.Get("/audit/", cfg.Admin.AuditLog)
		})
	})

	// Public catalog
	r.Get("/categories/", cfg.Catalog.Categories)
	r.Get("/genres/", cfg.Catalog.Genres)
	r.Get("/actors/", cfg.Catalog.Actors)
	r.Get("/movies/", cfg.Catalog.Movies)
	r.Get("/movies/{slug}/", cfg.Catalog.Movie)
	r.Post("/reviews/", cfg.Catalog.AddReview)
	r.Post("/rating/", cfg.Catalog.Rate)

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}
