package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configures optional parts of the router.
type RouterOptions struct {
	// Observer records request counts and durations. Nil disables it.
	Observer HTTPObserver
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
}

// NewRouter creates and configures the HTTP router with all routes and middleware.
func NewRouter(h *Handlers, logger *slog.Logger, opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(EchoRequestID)
	r.Use(middleware.RealIP)
	if opts.Observer != nil {
		r.Use(Instrument(opts.Observer))
	}
	r.Use(RequestLogger(logger))
	r.Use(Recovery(logger))
	// Burst data is incompressible binary, so only the metadata formats are
	// compressed.
	r.Use(middleware.Compress(5, "application/json", "application/geo+json", "text/plain"))

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Burst-Lines", "X-Burst-Samples", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", h.Health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	// Products
	r.Get("/products", h.Products)
	r.Route("/products/{granule}/bursts", func(r chi.Router) {
		r.Get("/", h.Bursts)
		r.Get("/{burstId}", h.Burst)
		r.Get("/{burstId}/data", h.BurstData)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteNotFound(w, "endpoint not found")
	})

	// 405 handler
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "method not allowed")
	})

	return r
}
