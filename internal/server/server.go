// Package server wires the HTTP API: scenario validation, portfolio
// generation, run history, contest tools, and system monitoring.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/raceday/internal/config"
	"github.com/aristath/raceday/internal/database"
	"github.com/aristath/raceday/internal/modules/conservation"
	"github.com/aristath/raceday/internal/modules/contest"
	"github.com/aristath/raceday/internal/modules/history"
	"github.com/aristath/raceday/internal/modules/optimization"
	"github.com/aristath/raceday/internal/modules/scenarios"
)

// Config holds server configuration.
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	HistoryDB *database.DB
	Validator *conservation.Validator
	Cache     *scenarios.Cache
	Service   *optimization.Service
	History   *history.Repository
}

// Server is the HTTP server.
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	systemHandlers *SystemHandlers
	conservation   *conservation.Handlers
	optimization   *optimization.Handlers
	contest        *contest.Handlers
}

// New creates the server and registers all routes.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg.Config,
		systemHandlers: NewSystemHandlers(
			cfg.Log, cfg.Config.DataDir, cfg.HistoryDB, cfg.Cache, cfg.Validator),
		conservation: conservation.NewHandlers(cfg.Validator, cfg.Log),
		optimization: optimization.NewHandlers(
			cfg.Service, cfg.History, cfg.Config.SolverTimeLimit, cfg.Log),
		contest: contest.NewHandlers(cfg.Log),
	}

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Config.Port),
		Handler: s.router,
		// Generation solves can run for many seconds per lineup, so the
		// write timeout is generous compared to the read side.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.systemHandlers.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		s.conservation.RegisterRoutes(r)
		s.optimization.RegisterRoutes(r)
		s.contest.RegisterRoutes(r)

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
			r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
		})
	})
}

// loggingMiddleware logs each request with latency at debug level.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request")
	})
}

// Start begins serving. Blocks until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
