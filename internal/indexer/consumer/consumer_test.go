package consumer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/indexer"
)

type countingReloader struct {
	calls int
	err   error
}

func (c *countingReloader) Reload(ctx context.Context) (*indexer.Snapshot, error) {
	c.calls++
	return &indexer.Snapshot{}, c.err
}

func TestHandleCorpusUpdated(t *testing.T) {
	r := &countingReloader{}
	handle := HandleCorpusUpdated(r, "animals")
	ctx := context.Background()

	assert.NoError(t, handle(ctx, []byte("plants"), []byte(`{"name":"plants","checksum":"x"}`)))
	assert.Equal(t, 0, r.calls)

	assert.NoError(t, handle(ctx, []byte("animals"), []byte(`{"name":"animals","checksum":"y"}`)))
	assert.Equal(t, 1, r.calls)

	assert.NoError(t, handle(ctx, nil, []byte(`not json`)), "bad payloads are skipped")
	assert.Equal(t, 1, r.calls)
}

func TestHandleCorpusUpdatedReloadError(t *testing.T) {
	r := &countingReloader{err: errors.New("db down")}
	err := HandleCorpusUpdated(r, "animals")(context.Background(), nil, []byte(`{"name":"animals"}`))
	assert.Error(t, err)
}
