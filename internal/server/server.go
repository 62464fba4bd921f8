// Package server provides the HTTP server and routing for the allocator.
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

	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/metrics"
	backtesthandlers "github.com/aristath/allocator/internal/modules/backtest/handlers"
	"github.com/aristath/allocator/internal/modules/glearning"
	glearninghandlers "github.com/aristath/allocator/internal/modules/glearning/handlers"
	"github.com/aristath/allocator/internal/modules/optimization"
	optimizationhandlers "github.com/aristath/allocator/internal/modules/optimization/handlers"
	"github.com/aristath/allocator/internal/modules/wealth"
	wealthhandlers "github.com/aristath/allocator/internal/modules/wealth/handlers"
	"github.com/aristath/allocator/pkg/logger"
)

// Config holds server configuration
type Config struct {
	Log     zerolog.Logger
	Config  *config.Config
	Port    int
	DevMode bool
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	port           int
	metrics        *metrics.Registry
	systemHandlers *SystemHandlers
	statusMonitor  *StatusMonitor
	monitorCtx     context.Context
	cancelMonitor  context.CancelFunc
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.Config{Port: cfg.Port, Models: config.DefaultModelDefaults()}
	}

	statusMonitor := NewStatusMonitor(cfg.Log)

	s := &Server{
		router:         chi.NewRouter(),
		log:            logger.Component(cfg.Log, "server"),
		cfg:            appCfg,
		port:           cfg.Port,
		metrics:        metrics.NewRegistry(),
		systemHandlers: NewSystemHandlers(statusMonitor, cfg.Log),
		statusMonitor:  statusMonitor,
	}
	// Created here so Shutdown never races Start for the cancel func.
	s.monitorCtx, s.cancelMonitor = context.WithCancel(context.Background())

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	// Q-learning and long backtests can run for tens of seconds.
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
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
	s.router.Get("/health", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	models := s.cfg.Models
	static := optimization.NewStaticAllocator(s.log)

	optimizationHandler := optimizationhandlers.NewHandler(static, s.metrics, models, s.log)
	wealthHandler := wealthhandlers.NewHandler(wealth.NewAllocator(s.log), s.metrics, models, s.log)
	glearningHandler := glearninghandlers.NewHandler(glearning.NewLearner(s.log), s.metrics, models, s.log)
	backtestHandler := backtesthandlers.NewHandler(static, s.metrics, models, s.log)

	s.router.Route("/api", func(r chi.Router) {
		optimizationHandler.RegisterRoutes(r)
		wealthHandler.RegisterRoutes(r)
		glearningHandler.RegisterRoutes(r)
		backtestHandler.RegisterRoutes(r)

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
		})
	})
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the status monitor and the HTTP server. It blocks until the
// server stops and returns nil after a graceful Shutdown.
func (s *Server) Start() error {
	s.statusMonitor.Start(s.monitorCtx, 30*time.Second)
	s.log.Info().Msg("Status monitor started")

	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	s.cancelMonitor()
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
