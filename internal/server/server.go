// Package server wraps http.Server with lifecycle management: start,
// serve, and graceful shutdown on context cancellation.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// shutdownTimeout bounds how long in-flight requests may run after a
// shutdown signal before the listener is torn down.
const shutdownTimeout = 10 * time.Second

// Server is the HTTP server for the Clario API.
type Server struct {
	httpServer *http.Server
	log        zerolog.Logger
}

// New creates a Server listening on addr with the given handler.
func New(addr string, handler http.Handler, log zerolog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		log: log,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully. A clean
// shutdown returns nil; a listener failure returns the underlying error.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: listening on %s: %w", s.httpServer.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutting down: %w", err)
	}
	return <-errCh
}

// Addr formats a host/port pair into a listen address.
func Addr(host string, port int) string {
	return net.JoinHostPort(host, fmt.Sprintf("%d", port))
}
