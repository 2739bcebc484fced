// Package api provides the HTTP API for ServiField's operational health
// surface.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/servifield/servifield/internal/api/handler"
	"github.com/servifield/servifield/internal/api/middleware"
	"github.com/servifield/servifield/internal/degradation"
	"github.com/servifield/servifield/internal/incidentlog"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version       string
	BuildTime     string
	Logger        zerolog.Logger
	ServiceName   string
	Metrics       *middleware.Metrics
	TokenVerifier middleware.TokenVerifier
	Manager       *degradation.Manager

	// History backs the incident history endpoint; nil degrades only that
	// endpoint.
	History incidentlog.Repository

	// Prometheus serves GET /metrics when set.
	Prometheus prometheus.Gatherer
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "servifield-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via SERVIFIELD_REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Manager)
	healthHandler := handler.NewHealthHandler(cfg.Manager)
	incidentHandler := handler.NewIncidentHandler(cfg.Manager, cfg.History)

	// Create auth middleware
	authMiddleware := middleware.Auth(cfg.TokenVerifier)

	// Create rate limit middleware for different endpoint categories
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)    // 100 req/min
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit)  // 30 req/min
	strictRateLimit := middleware.RateLimitByIP(middleware.StrictRateLimit)        // 10 req/min
	operatorRateLimit := middleware.RateLimitByOperator(middleware.StandardRateLimit)

	// Process-level probes for the orchestrator
	r.Get("/healthz", opsHandler.HealthCheck)
	r.Get("/readyz", opsHandler.ReadinessCheck)
	if cfg.Prometheus != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Prometheus, promhttp.HandlerOpts{}))
	}

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Health snapshot endpoints (public) - the dashboard polls these
		r.Route("/health", func(r chi.Router) {
			r.With(standardRateLimit).Get("/", healthHandler.GetHealth)
			r.With(standardRateLimit).Get("/services", healthHandler.ListServices)
			r.With(standardRateLimit).Get("/features", healthHandler.ListFeatures)
			// Each manual check fans out to every dependency probe
			r.With(authMiddleware, strictRateLimit).Post("/check", healthHandler.TriggerCheck)
		})

		// Incident endpoints - reads public, mutations and archive operator-only
		r.Route("/incidents", func(r chi.Router) {
			r.With(standardRateLimit).Get("/", incidentHandler.ListIncidents)
			r.With(authMiddleware, expensiveRateLimit).Get("/history", incidentHandler.ListHistory)
			r.With(authMiddleware, operatorRateLimit).Post("/", incidentHandler.CreateIncident)
			r.Route("/{incidentId}", func(r chi.Router) {
				r.With(standardRateLimit).Get("/", incidentHandler.GetIncident)
				r.With(authMiddleware, operatorRateLimit).Patch("/", incidentHandler.UpdateIncident)
				r.With(authMiddleware, operatorRateLimit).Post("/resolve", incidentHandler.ResolveIncident)
			})
		})
	})

	return r
}
