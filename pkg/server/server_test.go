package server

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/config"
)

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return ln
}

func TestRunWaitsForInFlightHandlers(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	srv := New(config.ServerConfig{}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		finished.Store(true)
		w.WriteHeader(http.StatusNoContent)
	}))

	ln := listen(t)
	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- Run(ctx, srv, ln, 5*time.Second) }()

	respErr := make(chan error, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/")
		if err == nil {
			resp.Body.Close()
		}
		respErr <- err
	}()

	<-entered
	cancel()
	select {
	case <-runErr:
		t.Fatal("Run returned while a handler was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-runErr)
	assert.True(t, finished.Load())
	assert.NoError(t, <-respErr)
}

func TestRunReportsDrainTimeout(t *testing.T) {
	entered := make(chan struct{})
	srv := New(config.ServerConfig{}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-r.Context().Done()
	}))

	ln := listen(t)
	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- Run(ctx, srv, ln, 20*time.Millisecond) }()
	go func() {
		if resp, err := http.Get("http://" + ln.Addr().String() + "/"); err == nil {
			resp.Body.Close()
		}
	}()

	<-entered
	cancel()
	err := <-runErr
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunReturnsServeError(t *testing.T) {
	ln := listen(t)
	require.NoError(t, ln.Close())

	err := Run(context.Background(), New(config.ServerConfig{}, http.NotFoundHandler()), ln, time.Second)
	assert.Error(t, err)
}

func TestNewUsesConfig(t *testing.T) {
	srv := New(config.ServerConfig{Port: 8181, ReadTimeout: time.Second, WriteTimeout: 2 * time.Second}, http.NotFoundHandler())
	assert.Equal(t, ":8181", srv.Addr)
	assert.Equal(t, time.Second, srv.ReadTimeout)
	assert.Equal(t, 2*time.Second, srv.WriteTimeout)
}
