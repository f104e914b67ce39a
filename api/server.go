/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the admin HTTP router (chi), middleware stack, and route
  definitions. The server only runs when http_addr is configured.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for dashboards

ROUTE GROUPS:
  /healthz                  Liveness
  /api/birthdays/*          Stored birthdays (read-only)
  /api/reconciliation/*     Manual cycle
  /metrics                  Prometheus exposition

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured. gatherer backs
// /metrics; nil serves the default registry.
func NewRouter(h *Handler, gatherer prometheus.Gatherer) *chi.Mux {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:8080"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/birthdays", func(r chi.Router) {
			r.Get("/", h.ListBirthdays)
			r.Get("/{userID}", h.GetBirthday)
		})

		r.Route("/reconciliation", func(r chi.Router) {
			r.Post("/run", h.RunReconciliation)
		})
	})

	return r
}

// Serve runs an HTTP server on addr until ctx is done, then shuts it down.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("admin http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
