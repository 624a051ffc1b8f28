// Package server is the HTTP surface: webhook endpoints for replication and
// channel fan-out, plus health and debug routes.
package server

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/koiibenvenutto/koii-server/internal/channels"
	"github.com/koiibenvenutto/koii-server/internal/config"
	"github.com/koiibenvenutto/koii-server/internal/replicate"
)

// Server wires the engine and the channel service behind HTTP handlers.
type Server struct {
	runner   *replicate.Runner
	channels *channels.Service
	cfg      *config.Config
	logger   *zap.Logger
}

// New creates the server. A nil logger disables logging.
func New(runner *replicate.Runner, channelSvc *channels.Service, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{runner: runner, channels: channelSvc, cfg: cfg, logger: logger}
}

// Handler returns the routed handler with request-id and logging middleware
// applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /replicate", s.handleReplicate)
	mux.HandleFunc("POST /channel-tasks", s.handleChannelTasks)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /debug/config", s.handleDebugConfig)
	return s.withRequestLogging(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http server shutdown", zap.Error(err))
		}
	}()

	s.logger.Info("http server listening", zap.String("addr", addr))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
