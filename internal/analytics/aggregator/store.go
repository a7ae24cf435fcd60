// Package aggregator writes the running analytics aggregate to PostgreSQL on
// a fixed cadence and reads the history back.
package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/analytics"
)

// Schema is safe to apply on every start.
const Schema = `CREATE TABLE IF NOT EXISTS analytics_snapshots (
	id          BIGSERIAL PRIMARY KEY,
	data        JSONB NOT NULL,
	captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const (
	insertSnapshot  = `INSERT INTO analytics_snapshots (data, captured_at) VALUES ($1, $2)`
	recentSnapshots = `SELECT data, captured_at FROM analytics_snapshots ORDER BY captured_at DESC LIMIT $1`

	// finalSaveTimeout bounds the snapshot written after shutdown begins.
	finalSaveTimeout = 5 * time.Second
)

// DB is satisfied by *sql.DB.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// StatsSource is satisfied by *analytics.Aggregator.
type StatsSource interface {
	Stats() analytics.AggregatedStats
}

type Store struct {
	db     DB
	now    func() time.Time
	logger *slog.Logger
}

func NewStore(db DB) *Store {
	return &Store{db: db, now: time.Now, logger: slog.Default().With("component", "analytics-store")}
}

// SaveSnapshot stores stats as one JSONB row stamped with the current UTC
// time.
func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.AggregatedStats) error {
	doc, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, insertSnapshot, doc, s.now().UTC()); err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}
	s.logger.Debug("snapshot stored", "total_ranks", stats.TotalRanks, "cache_hit_rate", stats.CacheHitRate)
	return nil
}

// ListSnapshots returns up to limit snapshots, newest first. A row whose
// JSON no longer decodes is logged and left out.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]analytics.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, recentSnapshots, limit)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	out := make([]analytics.Snapshot, 0, max(limit, 0))
	for rows.Next() {
		var (
			doc  []byte
			snap analytics.Snapshot
		)
		if err := rows.Scan(&doc, &snap.CapturedAt); err != nil {
			return nil, fmt.Errorf("reading snapshot row: %w", err)
		}
		if err := json.Unmarshal(doc, &snap.Stats); err != nil {
			s.logger.Warn("unreadable snapshot skipped", "captured_at", snap.CapturedAt, "error", err)
			continue
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshots: %w", err)
	}
	return out, nil
}

// StartPeriodicSave snapshots src every interval. Once ctx ends it saves one
// last time on a fresh context, so a clean shutdown loses no counts, and
// then closes the returned channel.
func (s *Store) StartPeriodicSave(ctx context.Context, src StatsSource, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	s.logger.Info("snapshotting analytics", "interval", interval)
	go func() {
		defer close(done)
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for {
			select {
			case <-tick.C:
				s.saveLogged(ctx, src, "periodic")
			case <-ctx.Done():
				finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalSaveTimeout)
				s.saveLogged(finalCtx, src, "final")
				cancel()
				return
			}
		}
	}()
	return done
}

func (s *Store) saveLogged(ctx context.Context, src StatsSource, kind string) {
	if err := s.SaveSnapshot(ctx, src.Stats()); err != nil {
		s.logger.Error("snapshot failed", "kind", kind, "error", err)
	}
}
