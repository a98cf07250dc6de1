// Package server provides the HTTP server and routing for CoinScope's
// monitoring and trigger API.
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

	"github.com/coinscope/coinscope/internal/jobs/monitor"
	"github.com/coinscope/coinscope/internal/jobs/scheduler"
	"github.com/coinscope/coinscope/internal/modules/risk"
	"github.com/coinscope/coinscope/internal/queue"
	"github.com/coinscope/coinscope/internal/realtime"
)

// Config holds server configuration
type Config struct {
	Port       int
	DevMode    bool
	Log        zerolog.Logger
	Backend    queue.Backend
	Monitor    *monitor.Monitor
	Scheduler  *scheduler.Scheduler
	RiskEngine *risk.Engine
	Hub        *realtime.Hub
	DataDir    string
}

// Server represents the HTTP server
type Server struct {
	router  *chi.Mux
	server  *http.Server
	log     zerolog.Logger
	cfg     Config
	jobs    *JobHandlers
	coinOps *CoinHandlers
	system  *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg,
		jobs:   NewJobHandlers(cfg.Backend, cfg.Monitor, cfg.Scheduler, cfg.Log),
		coinOps: NewCoinHandlers(cfg.Scheduler, cfg.RiskEngine, cfg.Log),
		system:  NewSystemHandlers(cfg.DataDir, cfg.Hub, cfg.Log),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-User-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if !s.cfg.DevMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/ws", s.cfg.Hub.ServeHTTP)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/stats", s.jobs.GetStats)
			r.Get("/health", s.jobs.GetHealth)
			r.Get("/failures", s.jobs.GetFailures)
			r.Post("/trigger", s.jobs.TriggerJob)
			r.Post("/pause", s.jobs.PauseAll)
			r.Post("/resume", s.jobs.ResumeAll)
			r.Post("/{queue}/pause", s.jobs.PauseQueue)
			r.Post("/{queue}/resume", s.jobs.ResumeQueue)
		})

		r.Route("/coins/{coinID}", func(r chi.Router) {
			r.Post("/refresh-price", s.coinOps.RefreshPrice)
			r.Post("/refresh-social", s.coinOps.RefreshSocial)
			r.Post("/assess-risk", s.coinOps.AssessRisk)
			r.Get("/risk-history", s.coinOps.RiskHistory)
		})

		r.Route("/risk/config", func(r chi.Router) {
			r.Get("/", s.coinOps.GetRiskConfig)
			r.Put("/", s.coinOps.UpdateRiskConfig)
		})

		r.Get("/system/status", s.system.GetStatus)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Start starts the HTTP server. Blocks until shutdown.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
