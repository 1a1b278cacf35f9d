package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/ftlgc/internal/logger"
	"github.com/marmos91/ftlgc/pkg/api/handlers"
	"github.com/marmos91/ftlgc/pkg/registry"
)

// shutdownGrace bounds the drain of in-flight requests when Start's context
// is cancelled.
const shutdownGrace = 5 * time.Second

// Server serves the router returned by NewRouter.
type Server struct {
	config APIConfig
	server *http.Server

	mu       sync.Mutex
	listener net.Listener
	stopOnce sync.Once
}

// NewServer builds a stopped server. registry may be nil for a health-only
// server and launcher may be nil to reject run submissions.
func NewServer(config APIConfig, registry *registry.Registry, launcher handlers.Launcher) *Server {
	config.applyDefaults()

	return &Server{
		config: config,
		server: &http.Server{
			Addr:         config.ListenAddress(),
			Handler:      newRouter(registry, launcher, config.RequestTimeout),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
	}
}

// Start binds the listener and serves until ctx is cancelled, then drains
// in-flight requests. It returns nil after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("API server: listen on %s: %w", s.server.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	logger.Info("API server listening", "address", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop shuts the server down. Only the first call has an effect.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		if err = s.server.Shutdown(ctx); err != nil {
			logger.Error("API server shutdown failed", logger.KeyError, err)
			err = fmt.Errorf("API server shutdown: %w", err)
			return
		}
		logger.Info("API server stopped")
	})
	return err
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.config.Port
}

// Addr returns the bound address once Start has run, else the configured
// one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}
