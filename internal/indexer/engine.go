// Package indexer turns loaded corpus text into a queryable index and keeps
// the current index swappable while requests are in flight.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/resilience"
)

// Snapshot is one immutable build of the corpus.
type Snapshot struct {
	Corpus      *index.Corpus
	Source      string
	Stemmer     string
	Fingerprint string
	BuiltAt     time.Time
	BuildTime   time.Duration
}

// Build loads text from loader within timeout and indexes it with the named
// stemmer. The fingerprint covers both the text and the stemmer, since either
// changes every score.
func Build(ctx context.Context, loader ingestion.Loader, stemmer string, timeout time.Duration) (*Snapshot, error) {
	stemmer = tokenizer.CanonicalStemmerName(stemmer)
	stem, err := tokenizer.StemmerByName(stemmer)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var text string
	err = resilience.WithTimeout(ctx, timeout, "load "+loader.Describe(), func(ctx context.Context) error {
		var err error
		text, err = loader.Load(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("loading corpus from %s: %w", loader.Describe(), err)
	}

	h := sha256.New()
	h.Write([]byte(stemmer))
	h.Write([]byte{0})
	h.Write([]byte(text))
	sum := h.Sum(nil)
	snap := &Snapshot{
		Corpus:      index.New(text, index.WithStemmer(stem)),
		Source:      loader.Describe(),
		Stemmer:     stemmer,
		Fingerprint: hex.EncodeToString(sum[:8]),
		BuiltAt:     time.Now().UTC(),
	}
	snap.BuildTime = time.Since(start)
	return snap, nil
}

// Engine holds the current Snapshot. Reads are lock-free; Reload builds a
// new snapshot aside and swaps it in.
type Engine struct {
	loader   ingestion.Loader
	stemmer  string
	timeout  time.Duration
	current  atomic.Pointer[Snapshot]
	reloadMu sync.Mutex
	onSwap   []func(old, new *Snapshot)
	logger   *slog.Logger
}

// NewEngine builds the first snapshot. It fails if the corpus cannot be
// loaded or the stemmer is unknown.
func NewEngine(ctx context.Context, loader ingestion.Loader, stemmer string, timeout time.Duration) (*Engine, error) {
	e := &Engine{
		loader:  loader,
		stemmer: stemmer,
		timeout: timeout,
		logger:  slog.Default().With("component", "indexer"),
	}
	if _, err := e.Reload(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Current returns the snapshot in use. It is never nil after NewEngine.
func (e *Engine) Current() *Snapshot {
	return e.current.Load()
}

// OnSwap registers fn to run after each successful reload. Register hooks
// before serving traffic.
func (e *Engine) OnSwap(fn func(old, new *Snapshot)) {
	e.onSwap = append(e.onSwap, fn)
}

// Reload rebuilds from the loader. Concurrent calls are serialised; on error
// the previous snapshot stays in place.
func (e *Engine) Reload(ctx context.Context) (*Snapshot, error) {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	snap, err := Build(ctx, e.loader, e.stemmer, e.timeout)
	if err != nil {
		e.logger.Error("corpus build failed", "source", e.loader.Describe(), "error", err)
		return nil, err
	}
	old := e.current.Swap(snap)

	stats := snap.Corpus.Stats()
	e.logger.Info("corpus indexed",
		"source", snap.Source,
		"fingerprint", snap.Fingerprint,
		"stemmer", snap.Stemmer,
		"sentences", stats.Sentences,
		"tokens", stats.Tokens,
		"vocabulary", stats.Vocabulary,
		"build_time", snap.BuildTime.Round(time.Microsecond),
	)
	for _, fn := range e.onSwap {
		fn(old, snap)
	}
	return snap, nil
}
