// Package api provides the HTTP API for transportco2.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/transportco2/transportco2/internal/account"
	"github.com/transportco2/transportco2/internal/admin"
	"github.com/transportco2/transportco2/internal/api/handler"
	"github.com/transportco2/transportco2/internal/api/middleware"
	"github.com/transportco2/transportco2/internal/api/response"
	"github.com/transportco2/transportco2/internal/auth"
	"github.com/transportco2/transportco2/internal/comparison"
	"github.com/transportco2/transportco2/internal/metrics"
	"github.com/transportco2/transportco2/internal/provider/resilience"
	"github.com/transportco2/transportco2/internal/simulation"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	RequireTLS  bool
	// RateLimit is the per-minute budget of standard endpoints.
	RateLimit int

	HTTPMetrics   *middleware.Metrics
	DomainMetrics *metrics.Metrics
	Upstreams     *resilience.Registry
	Readiness     []handler.DependencyCheck

	Auth        *auth.Provider
	Comparisons *comparison.Service
	Simulations *simulation.Service
	Accounts    *account.Service
	Admin       *admin.Service
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "transportco2-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.HTTPMetrics != nil {
		r.Use(cfg.HTTPMetrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement behind a proxy
	r.Use(middleware.RequireJSON)                // JSON request bodies only

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(response.MethodNotAllowed)

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Upstreams, cfg.Readiness...)
	authHandler := handler.NewAuthHandler(cfg.Auth)
	compareHandler := handler.NewCompareHandler(cfg.Comparisons)
	meHandler := handler.NewMeHandler(cfg.Accounts, cfg.Auth)
	tripsHandler := handler.NewTripsHandler(cfg.Simulations)
	historyHandler := handler.NewHistoryHandler(cfg.Accounts)
	adminHandler := handler.NewAdminHandler(cfg.Admin)

	authMiddleware := middleware.Auth(cfg.Auth)

	authRateLimit := middleware.RateLimitByIP(middleware.AuthRateLimit)                  // 10 req/min
	expensiveRateLimit := middleware.RateLimitByUser(middleware.ExpensiveRateLimit)      // 30 req/min
	standardRateLimit := middleware.RateLimitByUser(middleware.PerMinute(cfg.RateLimit)) // 100 req/min by default

	if cfg.DomainMetrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.DomainMetrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Get("/health", opsHandler.HealthCheck)
		r.Get("/ready", opsHandler.ReadinessCheck)

		// Comparison (public) - fans out to the backend
		r.With(expensiveRateLimit).Get("/compare", compareHandler.Compare)

		// Auth endpoints - strict rate limiting per IP
		r.Route("/auth", func(r chi.Router) {
			r.Use(authRateLimit)
			r.Post("/signup", authHandler.Signup)
			r.Post("/login", authHandler.Login)
			r.With(authMiddleware).Post("/refresh", authHandler.Refresh)
			r.With(authMiddleware).Post("/logout", authHandler.Logout)
		})

		// Everything below requires a session.
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RequireRole(auth.RoleVisitor))

			r.Route("/me", func(r chi.Router) {
				r.Use(standardRateLimit)
				r.Get("/", meHandler.GetMe)
				r.Put("/", meHandler.UpdateMe)
				r.Put("/theme", meHandler.SetTheme)

				r.Route("/trips", func(r chi.Router) {
					r.Get("/", tripsHandler.ListTrips)
					r.Post("/", tripsHandler.AddTrip)
					r.Delete("/", tripsHandler.ClearTrips)
					r.Get("/summary", tripsHandler.Summary)
					r.Delete("/{tripId}", tripsHandler.RemoveTrip)
				})
			})

			r.Route("/simulations", func(r chi.Router) {
				r.With(expensiveRateLimit).Post("/", tripsHandler.Submit)
				r.With(standardRateLimit).Get("/", tripsHandler.History)
			})

			r.Route("/history", func(r chi.Router) {
				r.Use(standardRateLimit)
				r.Get("/", historyHandler.List)
				r.Post("/", historyHandler.Save)
				r.Delete("/{id}", historyHandler.Delete)
			})

			// Admin endpoints
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(auth.RoleAdmin))
				r.Use(standardRateLimit)

				r.Route("/transports", func(r chi.Router) {
					r.Get("/", adminHandler.ListTransports)
					r.Post("/", adminHandler.CreateTransport)
					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", adminHandler.GetTransport)
						r.Put("/", adminHandler.UpdateTransport)
						r.Delete("/", adminHandler.DeleteTransport)
					})
				})

				r.Route("/users", func(r chi.Router) {
					r.Get("/", adminHandler.ListUsers)
					r.Post("/", adminHandler.CreateUser)
					r.Put("/{id}", adminHandler.UpdateUser)
					r.Delete("/{id}", adminHandler.DeleteUser)
				})
			})
		})
	})

	return r
}
