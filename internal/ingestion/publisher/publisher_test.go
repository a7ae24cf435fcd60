package publisher

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/kafka"
)

func TestChecksum(t *testing.T) {
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Checksum(""))
	assert.NotEqual(t, Checksum("a"), Checksum("b"))
}

type recordingProducer struct {
	events []kafka.Event
}

func (r *recordingProducer) Publish(ctx context.Context, e kafka.Event) error {
	r.events = append(r.events, e)
	return nil
}

// txDB adapts *sql.DB to Store for tests.
type txDB struct{ *sql.DB }

func (d txDB) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func TestStoreRoundTrip(t *testing.T) {
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
	_, err = db.ExecContext(ctx, ingestion.Schema)
	require.NoError(t, err)

	producer := &recordingProducer{}
	p := New(txDB{db}, producer)
	text := "The cat sat.\nThe dog ran."

	update, err := p.Store(ctx, "publisher_test", text)
	require.NoError(t, err)
	assert.Equal(t, 2, update.Lines)
	assert.Equal(t, Checksum(text), update.Checksum)
	require.Len(t, producer.events, 1)
	assert.Equal(t, "publisher_test", producer.events[0].Key)

	loaded, err := ingestion.PostgresLoader{DB: db, Name: "publisher_test"}.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, text, loaded)

	meta, err := p.Describe(ctx, "publisher_test")
	require.NoError(t, err)
	assert.Equal(t, update.Checksum, meta.Checksum)

	_, err = p.Describe(ctx, "never_stored")
	assert.ErrorIs(t, err, apperrors.ErrCorpusNotFound)
}
