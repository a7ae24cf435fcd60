package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Serve starts a dedicated scrape listener on port and returns its graceful
// shutdown function. Listener failures are logged, not fatal: a service keeps
// ranking when its metrics port is taken.
func (m *Metrics) Serve(port int) func(context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	go func() {
		slog.Info("serving metrics", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics listener stopped", "addr", srv.Addr, "error", err)
		}
	}()
	return srv.Shutdown
}
