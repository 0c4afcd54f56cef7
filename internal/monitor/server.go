// Package monitor serves the live state of a running session and renders it
// on an operator dashboard.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/bioadapt/internal/experiment"
)

// SessionSource provides the session state served by the monitor.
type SessionSource interface {
	Snapshot() experiment.Snapshot
}

// Server provides HTTP endpoints for the operator.
type Server struct {
	echo     *echo.Echo
	source   SessionSource
	registry *prometheus.Registry
	logger   *zap.Logger
	config   *Config
}

// Config holds monitor server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new monitor server over source.
func NewServer(source SessionSource, logger *zap.Logger, cfg *Config) (*Server, error) {
	if source == nil {
		return nil, fmt.Errorf("session source cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9464,
		}
	}

	registry := prometheus.NewRegistry()
	if err := registerCollectors(registry, source); err != nil {
		return nil, fmt.Errorf("registering collectors: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Debug("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:     e,
		source:   source,
		registry: registry,
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/session", s.handleSession)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Phase  string `json:"phase"`
}

func (s *Server) handleHealth(c echo.Context) error {
	snap := s.source.Snapshot()
	status := "ok"
	if snap.Phase == experiment.PhaseAborted {
		status = "aborted"
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: status, Phase: string(snap.Phase)})
}

func (s *Server) handleSession(c echo.Context) error {
	return c.JSON(http.StatusOK, s.source.Snapshot())
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Start starts the HTTP server. It blocks until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting monitor server", zap.String("addr", s.Addr()))
	if err := s.echo.Start(s.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run starts the server and shuts it down when ctx is done.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down monitor server")
	return s.echo.Shutdown(ctx)
}
