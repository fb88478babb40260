package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/digitalis/digitalis/internal/handlers"
	"github.com/digitalis/digitalis/internal/middleware"
)

// Dependencies bundles what the routes need beyond the handlers
type Dependencies struct {
	Auth       func(http.Handler) http.Handler
	IPLimit    func(http.Handler) http.Handler
	Health     *handlers.HealthHandler
	WebService *handlers.WebServiceHandler
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, deps Dependencies) {
	router.Use(middleware.Metrics)

	// Public routes
	router.Get("/health", deps.Health.Health)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Web-service routes: rate limited by IP, then authenticated
	router.Group(func(r chi.Router) {
		if deps.IPLimit != nil {
			r.Use(deps.IPLimit)
		}
		r.Use(deps.Auth)
		deps.WebService.RegisterRoutes(r)
	})
}
