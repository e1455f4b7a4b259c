// Package api exposes the forecast HTTP surface.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/delaycast/internal/forecast"
)

// Router wires handlers and middleware for the forecast API.
type Router struct {
	handler *Handler
	limit   *RateLimiter
	log     *zap.Logger
}

// NewRouter creates the API router around a serving engine and prior source.
func NewRouter(engine *forecast.Engine, priors forecast.PriorSource, thresholdMin int, ratePerSec float64, burst int) *Router {
	return &Router{
		handler: NewHandler(engine, priors, thresholdMin),
		limit:   NewRateLimiter(ratePerSec, burst),
		log:     zap.L().Named("api"),
	}
}

// Routes returns the assembled handler tree.
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(RequestLogger(r.log))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}))
	router.Use(r.limit.Middleware)

	router.Route("/api/v1", func(router chi.Router) {
		router.Get("/forecast/{carrier}/{flight}/{date}", r.handler.GetForecast)
		router.Get("/routes/{carrier}/{origin}/{dest}/prior", r.handler.GetRoutePrior)
	})

	router.Get("/health", r.handler.GetHealth)
	router.Handle("/metrics", promhttp.Handler())

	return router
}
