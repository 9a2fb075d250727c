// Package web provides the JSON HTTP API for templates, records, imports
// and reports.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/importcheck/internal/config"
	"github.com/JonMunkholm/importcheck/internal/core"
	"github.com/JonMunkholm/importcheck/internal/web/middleware"
)

// Server is the HTTP server for the import validation service.
type Server struct {
	service *core.Service
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server

	limiter       *middleware.RateLimiter
	importLimiter *middleware.RateLimiter
}

// NewServer creates a Server with its middleware and routes.
func NewServer(service *core.Service, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	if cfg.Rate.Enabled {
		s.limiter = middleware.NewRateLimiter(cfg.Rate.RequestsPerMinute, cfg.Rate.Burst)
		s.importLimiter = middleware.NewRateLimiter(cfg.Rate.ImportLimit, max(cfg.Rate.ImportLimit/2, 1))
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Actor)
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Compress(5, "application/json"))
	s.router.Use(securityHeaders)

	if s.limiter != nil {
		s.router.Use(s.limiter.Handler)
	}
}

// setupRoutes configures all HTTP routes. Imports run under the import
// timeout; everything else under the request timeout.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(&s.cfg.Security))

		r.Group(func(r chi.Router) {
			if s.cfg.Server.RequestTimeout > 0 {
				r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
			}

			r.Post("/schema", s.handleGenerateSchema)

			// Templates
			r.Get("/templates", s.handleListTemplates)
			r.Post("/templates", s.handleCreateTemplate)
			r.Get("/templates/{id}", s.handleGetTemplate)
			r.Put("/templates/{id}", s.handleUpdateTemplate)
			r.Delete("/templates/{id}", s.handleDeleteTemplate)

			// Validation
			r.Post("/templates/{id}/validate", s.handleValidateRecord)
			r.Post("/templates/{id}/validate-cell", s.handleValidateCell)

			// Records
			r.Get("/templates/{id}/records", s.handleListRecords)
			r.Put("/templates/{id}/records/{recordID}", s.handleUpdateRecord)
			r.Delete("/templates/{id}/records/{recordID}", s.handleDeleteRecord)
			r.Post("/templates/{id}/revalidate", s.handleRevalidate)

			// Reports
			r.Get("/templates/{id}/error-report", s.handleErrorReport)
			r.Get("/collections/{name}/aggregate", s.handleAggregate)
			r.Get("/import-statuses", s.handleImportStatuses)
			r.Post("/import-configs", s.handleCreateImportConfig)

			// Activity
			r.Get("/activity", s.handleListActivity)
			r.Post("/activity", s.handleAppendActivity)
		})

		r.Group(func(r chi.Router) {
			if s.importLimiter != nil {
				r.Use(s.importLimiter.Handler)
			}
			r.Post("/templates/{id}/import", s.handleImport)
			r.Post("/templates/{id}/import/preview", s.handlePreviewImport)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and the rate limiters.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Close()
	}
	if s.importLimiter != nil {
		s.importLimiter.Close()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Encoding errors are logged since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// healthResponse is the /health body.
type healthResponse struct {
	Status  string                   `json:"status"`
	Storage string                   `json:"storage"`
	Imports core.ImportLimiterStatus `json:"imports"`
	Time    time.Time                `json:"time"`
}

// handleHealth reports liveness. Storage failures turn the status to
// degraded with 503 so load balancers stop routing here.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:  "ok",
		Storage: "ok",
		Imports: s.service.Limiter().Status(),
		Time:    time.Now().UTC(),
	}
	status := http.StatusOK
	if err := s.service.Ping(ctx); err != nil {
		slog.Warn("health check: storage unreachable", "error", err)
		resp.Status = "degraded"
		resp.Storage = "unavailable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
