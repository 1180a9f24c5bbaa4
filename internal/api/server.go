package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/creco/imaikura/pkg/config"
	"github.com/creco/imaikura/pkg/logger"
)

// Server represents the HTTP API server
// ⭐ SSOT: API サーバー設定はこのファイルだけ
type Server struct {
	httpServer *http.Server
	logger     *logger.Logger
	config     *config.Config
}

// New creates a new API server
func New(cfg *config.Config, log *logger.Logger, router http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: writeTimeout(cfg),
			IdleTimeout:  60 * time.Second,
		},
		logger: log,
		config: cfg,
	}
}

// writeTimeout leaves room for one bounded rate fetch before the response
func writeTimeout(cfg *config.Config) time.Duration {
	d := cfg.Rates.FetchTimeout + 10*time.Second
	if d < 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.WithFields(map[string]interface{}{
		"port": s.config.Port,
		"env":  s.config.Env,
	}).Info("Starting API server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
