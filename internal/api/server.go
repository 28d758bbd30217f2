// Package api exposes the fatigue engine over HTTP for the dashboard and
// the on-demand analysis entry points.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/adfatigue-monitor/internal/config"
)

// Server represents the API server
type Server struct {
	config  config.ServerConfig
	router  *chi.Mux
	server  *http.Server
	handler *Handlers
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, handlers *Handlers) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", handlers.HealthCheck)

	r.Route("/api/fatigue", func(r chi.Router) {
		r.Post("/score", handlers.ComputeScore)
		r.Post("/creative", handlers.AnalyzeCreative)
		r.Get("/thresholds", handlers.GetThresholds)

		r.Route("/accounts/{accountID}", func(r chi.Router) {
			r.Post("/scan", handlers.ScanAccount)
			r.Post("/batch", handlers.RunBatch)
			r.Get("/ads/{adID}", handlers.GetAdAnalysis)
		})
	})

	return &Server{
		config:  cfg,
		router:  r,
		handler: handlers,
	}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router exposes the configured router for tests
func (s *Server) Router() http.Handler {
	return s.router
}
