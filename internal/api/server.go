// Package api exposes the article search over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wayback-news/internal/config"
	"wayback-news/internal/observability"
	"wayback-news/internal/sources"
)

const (
	healthPath = "/healthz"

	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second
)

type Server struct {
	cfg    *config.Config
	logger *observability.Logger
	router *gin.Engine
	server *http.Server
}

// NewServer builds the router. gatherer backs the metrics endpoint; nil uses
// the default registry.
func NewServer(
	cfg *config.Config,
	logger *observability.Logger,
	pipeline Pipeline,
	registry *sources.Registry,
	gatherer prometheus.Gatherer,
) *Server {
	gin.SetMode(cfg.Server.Mode)
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	handler := NewHandler(pipeline, registry, cfg.GetRequestTimeout(), logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))
	router.Use(proxySecretMiddleware(cfg.Server.ProxySecretHeader, cfg.Server.ProxySecret, healthPath))

	router.GET(healthPath, handler.Health)
	router.GET(cfg.Observability.MetricsPath, gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	router.GET("/sources", handler.Sources)
	router.GET("/articles", handler.Articles)
	router.GET("/:source/:timestamp/", handler.SourceArticles)

	return &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
		server: &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           router,
			ReadHeaderTimeout: readHeaderTimeout,
			IdleTimeout:       idleTimeout,
		},
	}
}

func (s *Server) Router() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests for at
// most server.shutdown_timeout_s.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.GetShutdownTimeout())
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
