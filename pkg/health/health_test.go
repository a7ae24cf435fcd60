package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func up(ctx context.Context) error { return nil }

func down(ctx context.Context) error { return errors.New("connection refused") }

func TestRunAggregatesWorstStatus(t *testing.T) {
	c := NewChecker("ranker")
	c.Register("corpus", Ping(false, up))
	c.Register("redis", Ping(true, down))

	report := c.Run(context.Background())
	assert.Equal(t, "ranker", report.Service)
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, StatusUp, report.Components["corpus"].Status)
	assert.Equal(t, "connection refused", report.Components["redis"].Message)
	assert.NotEmpty(t, report.Components["redis"].Latency)

	c.Register("postgres", Ping(false, down))
	assert.Equal(t, StatusDown, c.Run(context.Background()).Status)
}

func TestRegisterReplaces(t *testing.T) {
	c := NewChecker("ranker")
	c.Register("redis", Ping(false, down))
	c.Register("redis", Ping(false, up))

	report := c.Run(context.Background())
	assert.Len(t, report.Components, 1)
	assert.Equal(t, StatusUp, report.Status)
}

func TestRunEmpty(t *testing.T) {
	report := NewChecker("analytics").Run(context.Background())
	assert.Equal(t, StatusUp, report.Status)
	assert.Empty(t, report.Components)
}

func TestRunOverrunCheckIsDown(t *testing.T) {
	c := NewChecker("ranker")
	c.Register("kafka", func(ctx context.Context) ComponentHealth {
		<-ctx.Done()
		return ComponentHealth{Status: StatusUp}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	report := c.Run(ctx)
	assert.Equal(t, StatusDown, report.Status)
	assert.Equal(t, "check timed out", report.Components["kafka"].Message)
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker("ranker")
	c.Register("redis", Ping(true, down))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "degraded is still ready")

	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusDegraded, report.Status)

	c.Register("corpus", Ping(false, down))
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker("ingestion").LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive","service":"ingestion"}`, rec.Body.String())
}
