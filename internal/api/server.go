// Package api exposes the dispatch triggers over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"shift-notify/internal/common/config"
	"shift-notify/internal/common/logger"
	"shift-notify/internal/notify/trigger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Triggers is implemented by trigger.Service.
type Triggers interface {
	PublishWeek(ctx context.Context, req trigger.WeekRequest) (*trigger.Ack, error)
	NotifyWeek(ctx context.Context, req trigger.WeekRequest) (*trigger.Ack, error)
	NotifyRecipients(ctx context.Context, req trigger.RecipientsRequest) (*trigger.Ack, error)
}

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	triggers   Triggers
	checks     map[string]Pinger
	cfg        config.HTTPConfig
	metrics    bool
	logger     logger.Logger
	startTime  time.Time
}

func NewServer(cfg config.HTTPConfig, triggers Triggers, checks map[string]Pinger, metricsEnabled bool, log logger.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		triggers:  triggers,
		checks:    checks,
		cfg:       cfg,
		metrics:   metricsEnabled,
		logger:    log,
		startTime: time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/ready", s.handleReady)
	if s.metrics {
		s.router.Handle("/metrics", promhttp.Handler())
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/weeks/{weekCode}/publish", s.handlePublishWeek)
		r.Post("/notifications/week", s.handleNotifyWeek)
		r.Post("/notifications/recipients", s.handleNotifyRecipients)
	})
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Address,
		Handler:      s.router,
		ReadTimeout:  config.GetDuration(s.cfg.ReadTimeout),
		WriteTimeout: config.GetDuration(s.cfg.WriteTimeout),
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting HTTP API server", map[string]interface{}{"addr": s.cfg.Address})
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP API server", nil)
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("HTTP request", map[string]interface{}{
			"method":    r.Method,
			"path":      r.URL.Path,
			"status":    ww.Status(),
			"duration":  time.Since(start).String(),
			"bytes":     ww.BytesWritten(),
			"requestId": middleware.GetReqID(r.Context()),
		})
	})
}
