package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/analytics"
)

type execRecorder struct {
	mu    sync.Mutex
	execs [][]any
	err   error
}

func (e *execRecorder) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	e.execs = append(e.execs, args)
	return nil, nil
}

func (e *execRecorder) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return nil, errors.New("not supported")
}

func (e *execRecorder) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.execs)
}

type fixedStats struct{ stats analytics.AggregatedStats }

func (f fixedStats) Stats() analytics.AggregatedStats { return f.stats }

func TestSaveSnapshot(t *testing.T) {
	db := &execRecorder{}
	s := NewStore(db)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return at }

	require.NoError(t, s.SaveSnapshot(context.Background(), analytics.AggregatedStats{TotalRanks: 42}))
	require.Len(t, db.execs, 1)

	var decoded analytics.AggregatedStats
	require.NoError(t, json.Unmarshal(db.execs[0][0].([]byte), &decoded))
	assert.EqualValues(t, 42, decoded.TotalRanks)
	assert.Equal(t, at, db.execs[0][1])
}

func TestSaveSnapshotError(t *testing.T) {
	s := NewStore(&execRecorder{err: errors.New("disk full")})
	err := s.SaveSnapshot(context.Background(), analytics.AggregatedStats{})
	assert.ErrorContains(t, err, "inserting snapshot: disk full")
}

func TestStartPeriodicSaveWritesFinalSnapshot(t *testing.T) {
	db := &execRecorder{}
	s := NewStore(db)
	ctx, cancel := context.WithCancel(context.Background())

	done := s.StartPeriodicSave(ctx, fixedStats{analytics.AggregatedStats{TotalRanks: 1}}, 5*time.Millisecond)
	require.Eventually(t, func() bool { return db.count() >= 2 }, time.Second, time.Millisecond)
	cancel()
	<-done

	assert.GreaterOrEqual(t, db.count(), 3)
}

func TestListSnapshotsPostgres(t *testing.T) {
	dsn := os.Getenv("SR_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SR_TEST_POSTGRES_DSN not set")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()
	if err := db.Ping(); err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	ctx := context.Background()
	_, err = db.ExecContext(ctx, Schema)
	require.NoError(t, err)

	s := NewStore(db)
	require.NoError(t, s.SaveSnapshot(ctx, analytics.AggregatedStats{TotalRanks: 99}))
	snaps, err := s.ListSnapshots(ctx, 1)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.EqualValues(t, 99, snaps[0].Stats.TotalRanks)
}
