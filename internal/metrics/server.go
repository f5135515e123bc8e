package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/alisaviation/mqtt-bridge/internal/logger"
	"github.com/alisaviation/mqtt-bridge/internal/middleware"
)

// Server exposes a Registry over HTTP.
type Server struct {
	addr     string
	registry *Registry
	server   *http.Server
	listener net.Listener
}

func NewServer(addr string, registry *Registry) *Server {
	return &Server{
		addr:     addr,
		registry: registry,
	}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(logger.RequestResponseLogger)

	metrics := s.registry.Handler()
	r.Group(func(r chi.Router) {
		r.Use(middleware.GzipMiddleware)
		for _, pattern := range []string{"/", "/metrics"} {
			r.Get(pattern, metrics.ServeHTTP)
			r.Head(pattern, metrics.ServeHTTP)
		}
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return r
}

// Start binds the listen address and serves in the background. A bind failure
// is returned to the caller; nothing is served in that case.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("metrics listen on %s: %w", s.addr, err)
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("Metrics server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address once Start succeeded, the configured one otherwise.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
