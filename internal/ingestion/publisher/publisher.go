// Package publisher persists corpora to PostgreSQL and announces each change
// on Kafka so running rankers can reload.
package publisher

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/kafka"
)

// Store is the transactional database the publisher writes to.
type Store interface {
	InTx(ctx context.Context, fn func(tx *sql.Tx) error) error
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// EventPublisher sends a single event to the message bus.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Publisher coordinates corpus persistence and update events.
type Publisher struct {
	db       Store
	producer EventPublisher
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Publisher. producer may be nil, in which case updates are
// stored but not announced.
func New(db Store, producer EventPublisher) *Publisher {
	return &Publisher{
		db:       db,
		producer: producer,
		logger:   slog.Default().With("component", "publisher"),
		now:      time.Now,
	}
}

// Checksum is the hex SHA-256 of the corpus text.
func Checksum(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Store replaces the named corpus with text, one row per line, and publishes
// a CorpusUpdated event. A publish failure is logged but does not fail the
// store: the data is durable and a ranker restart picks it up.
func (p *Publisher) Store(ctx context.Context, name, text string) (*ingestion.CorpusUpdated, error) {
	lines := strings.Split(text, "\n")
	err := p.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM corpus_documents WHERE corpus = $1`, name); err != nil {
			return fmt.Errorf("clearing corpus %q: %w", name, err)
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO corpus_documents (corpus, position, body) VALUES ($1, $2, $3)`)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()
		for i, line := range lines {
			if _, err := stmt.ExecContext(ctx, name, i, line); err != nil {
				return fmt.Errorf("inserting line %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storing corpus: %w", err)
	}

	update := &ingestion.CorpusUpdated{
		Name:      name,
		Checksum:  Checksum(text),
		Lines:     len(lines),
		UpdatedAt: p.now().UTC(),
	}
	p.logger.Info("corpus stored", "corpus", name, "lines", update.Lines, "checksum", update.Checksum[:12])

	if p.producer != nil {
		if err := p.producer.Publish(ctx, kafka.Event{Key: name, Value: update}); err != nil {
			p.logger.Error("failed to publish corpus update, rankers will not reload",
				"corpus", name,
				"error", err,
			)
		}
	}
	return update, nil
}

// Describe returns metadata for a stored corpus.
func (p *Publisher) Describe(ctx context.Context, name string) (*ingestion.CorpusUpdated, error) {
	var lines int
	var joined sql.NullString
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*), string_agg(body, E'\n' ORDER BY position) FROM corpus_documents WHERE corpus = $1`,
		name).Scan(&lines, &joined)
	if err != nil {
		return nil, fmt.Errorf("describing corpus %q: %w", name, err)
	}
	if lines == 0 {
		return nil, apperrors.Newf(apperrors.ErrCorpusNotFound, 404, "corpus %q not found", name)
	}
	return &ingestion.CorpusUpdated{
		Name:     name,
		Checksum: Checksum(joined.String),
		Lines:    lines,
	}, nil
}
