// Package web is the JSON HTTP adapter over the student directory, the
// spreadsheet importer and the configuration store.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/roster/internal/config"
	"github.com/JonMunkholm/roster/internal/core"
	"github.com/JonMunkholm/roster/internal/docstore"
	"github.com/JonMunkholm/roster/internal/settings"
	mw "github.com/JonMunkholm/roster/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// healthTimeout bounds the store ping behind /healthz.
const healthTimeout = 2 * time.Second

// Deps are the collaborators the server routes to.
type Deps struct {
	Service  *core.Service
	Settings *settings.Store
	Store    docstore.Store

	// Gatherer serves /metrics when non-nil.
	Gatherer prometheus.Gatherer

	// Clock stamps created_at on new students. Defaults to time.Now.
	Clock core.Clock
}

// Server is the HTTP server.
type Server struct {
	cfg      *config.Config
	service  *core.Service
	settings *settings.Store
	store    docstore.Store
	gatherer prometheus.Gatherer
	now      core.Clock

	router   *chi.Mux
	server   *http.Server
	limiters []*rateLimiter
}

// NewServer builds the router for cfg and deps.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:      cfg,
		service:  deps.Service,
		settings: deps.Settings,
		store:    deps.Store,
		gatherer: deps.Gatherer,
		now:      deps.Clock,
		router:   chi.NewRouter(),
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Security.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-Id"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute).middleware)
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))

		// Uploads are bounded by Upload.Timeout instead.
		r.With(s.uploadRateLimit()).Post("/students/upload", s.handleUploadStudents)

		r.Group(func(r chi.Router) {
			if s.cfg.Server.RequestTimeout > 0 {
				r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
			}

			r.Get("/students", s.handleListStudents)
			r.Post("/students", s.handleCreateStudent)
			r.Get("/students/{id}", s.handleGetStudent)
			r.Put("/students/{id}", s.handleUpdateStudent)
			r.Delete("/students/{id}", s.handleDeleteStudent)

			r.Get("/config", s.handleGetConfig)
		})
	})
}

func (s *Server) uploadRateLimit() func(http.Handler) http.Handler {
	if !s.cfg.Rate.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return s.newRateLimiter(s.cfg.Rate.UploadLimit, time.Minute).middleware
}

func (s *Server) newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := newRateLimiter(rate, window)
	s.limiters = append(s.limiters, rl)
	return rl
}

// Start listens on the configured address. It returns http.ErrServerClosed
// after Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("server starting", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, waits for running imports and then
// for in-flight requests, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, rl := range s.limiters {
		rl.stop()
	}

	if s.service != nil && s.service.Limiter.Active() > 0 {
		slog.Info("waiting for imports to complete", "active", s.service.Limiter.Active())
		if err := s.service.Limiter.WaitForDrain(ctx); err != nil {
			slog.Warn("imports did not complete in time", "error", err)
		}
	}

	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the handler, for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if s.store != nil {
		if err := s.store.Ping(ctx); err != nil {
			if !errors.Is(err, context.Canceled) {
				slog.Warn("health check failed", "error", err)
			}
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// securityHeaders sets hardening headers on every response. The API only
// returns JSON, so the content security policy forbids everything.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}
			next.ServeHTTP(w, r)
		})
	}
}
