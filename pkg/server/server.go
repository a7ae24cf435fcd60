// Package server runs a service's HTTP listener until its context ends and
// drains in-flight requests before returning.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/config"
)

// New builds the API server for cfg.Port with the configured I/O timeouts.
func New(cfg config.ServerConfig, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// ListenAndRun listens on srv.Addr and hands over to Run.
func ListenAndRun(ctx context.Context, srv *http.Server, drain time.Duration) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", srv.Addr, err)
	}
	return Run(ctx, srv, ln, drain)
}

// Run serves on ln until ctx ends, then shuts down gracefully, waiting up to
// drain for handlers still running. Within that window it returns only
// after the last handler has finished, so callers may close the producers
// and pools handlers use once it returns.
func Run(ctx context.Context, srv *http.Server, ln net.Listener, drain time.Duration) error {
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()
	slog.Info("http server listening", "addr", ln.Addr().String())

	select {
	case err := <-served:
		return fmt.Errorf("serving %s: %w", ln.Addr(), err)
	case <-ctx.Done():
	}

	slog.Info("draining http server", "timeout", drain)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drain)
	defer cancel()
	shutdownErr := srv.Shutdown(shutdownCtx)
	if err := <-served; !errors.Is(err, http.ErrServerClosed) {
		return errors.Join(shutdownErr, err)
	}
	if shutdownErr != nil {
		// Handlers outlived the drain window; cut their connections.
		_ = srv.Close()
		return fmt.Errorf("draining %s: %w", ln.Addr(), shutdownErr)
	}
	return nil
}
