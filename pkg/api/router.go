package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/ftlgc/internal/logger"
	"github.com/marmos91/ftlgc/pkg/api/handlers"
	"github.com/marmos91/ftlgc/pkg/metrics"
	"github.com/marmos91/ftlgc/pkg/registry"
)

// NewRouter returns the API handler with the default request timeout.
//
// Routes:
//   - GET /health, /health/ready, /health/stores - probes
//   - GET /metrics - Prometheus exposition (only when metrics are enabled)
//   - GET /policies - built-in GC policies
//   - GET, POST /runs; GET, DELETE /runs/{id}; GET /runs/{id}/report
//   - GET /snapshots; DELETE /snapshots/{name}
//
// registry may be nil, in which case only the health and policy routes are
// mounted. launcher may be nil to disable POST /runs.
func NewRouter(registry *registry.Registry, launcher handlers.Launcher) http.Handler {
	return newRouter(registry, launcher, DefaultRequestTimeout)
}

func newRouter(registry *registry.Registry, launcher handlers.Launcher, timeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	healthHandler := handlers.NewHealthHandler(registry)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
		r.Get("/stores", healthHandler.Stores)
	})

	if reg := metrics.GetRegistry(); reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	}

	r.Get("/policies", handlers.Policies)

	if registry != nil {
		runsHandler := handlers.NewRunsHandler(registry, launcher)
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", runsHandler.List)
			r.Post("/", runsHandler.Create)
			r.Get("/{id}", runsHandler.Get)
			r.Delete("/{id}", runsHandler.Delete)
			r.Get("/{id}/report", runsHandler.Report)
		})

		snapshotsHandler := handlers.NewSnapshotsHandler(registry)
		r.Route("/snapshots", func(r chi.Router) {
			r.Get("/", snapshotsHandler.List)
			r.Delete("/{name}", snapshotsHandler.Delete)
		})
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	return r
}

// requestLogger logs each request at DEBUG, and server errors at WARN.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		args := []any{
			logger.KeyRequestID, middleware.GetReqID(r.Context()),
			logger.KeyMethod, r.Method,
			logger.KeyPath, r.URL.Path,
			logger.KeyStatus, ww.Status(),
			logger.KeyDurationMs, logger.Duration(start),
		}
		if ww.Status() >= http.StatusInternalServerError {
			logger.Warn("API request failed", args...)
			return
		}
		logger.Debug("API request", args...)
	})
}
