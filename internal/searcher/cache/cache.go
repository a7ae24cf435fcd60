// Package cache stores rank results in Redis keyed by corpus fingerprint and
// normalised query, collapsing concurrent misses with singleflight.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/searcher/ranker"
	pkgredis "github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/resilience"
)

const keyPrefix = "rank:"

// Backend is the key-value store behind the cache. *pkgredis.Client
// implements it; a missing key must satisfy pkgredis.IsNilError.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Stats reports cache counters since process start.
type Stats struct {
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Errors  int64  `json:"errors"`
	Breaker string `json:"breaker"`
}

type QueryCache struct {
	backend Backend
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
	errors  atomic.Int64
}

// New creates a cache over backend. breaker may be nil, in which case a
// default breaker named "rank-cache" is used.
func New(backend Backend, ttl time.Duration, breaker *resilience.CircuitBreaker) *QueryCache {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("rank-cache", resilience.CircuitBreakerConfig{})
	}
	return &QueryCache{
		backend: backend,
		ttl:     ttl,
		breaker: breaker,
		logger:  slog.Default().With("component", "rank-cache"),
	}
}

// Get returns cached results for key. Backend failures and an open breaker
// count as misses.
func (c *QueryCache) Get(ctx context.Context, key string) ([]ranker.ScoredSentence, bool) {
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.backend.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return nil
		}
		return err
	})
	if err != nil {
		c.errors.Add(1)
		c.misses.Add(1)
		c.logger.Warn("cache get failed", "key", key, "error", err)
		return nil, false
	}
	if data == nil {
		c.misses.Add(1)
		return nil, false
	}
	var results []ranker.ScoredSentence
	if err := json.Unmarshal(data, &results); err != nil {
		c.errors.Add(1)
		c.misses.Add(1)
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "key", key, "results", len(results))
	return results, true
}

// Set stores results under key with the configured TTL.
func (c *QueryCache) Set(ctx context.Context, key string, results []ranker.ScoredSentence) {
	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.backend.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.errors.Add(1)
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached results for key or runs compute once per
// key across concurrent callers and caches what it returns. The bool is true
// on a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	key string,
	compute func() ([]ranker.ScoredSentence, error),
) ([]ranker.ScoredSentence, bool, error) {
	if results, ok := c.Get(ctx, key); ok {
		return results, true, nil
	}
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		results, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, results)
		return results, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]ranker.ScoredSentence), false, nil
}

// Invalidate deletes every rank entry and returns how many were removed.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	var deleted int64
	err := c.breaker.Execute(func() error {
		var err error
		deleted, err = c.backend.FlushByPattern(ctx, keyPrefix+"*")
		return err
	})
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Errors:  c.errors.Load(),
		Breaker: c.breaker.GetState().String(),
	}
}

// Key builds the cache key for a query's stemmed terms. Terms are sorted:
// the query vector is a bag of words, so order cannot change the ranking.
// The corpus fingerprint scopes entries to one build of the index.
func Key(fingerprint string, terms []string, top int) string {
	sorted := append([]string(nil), terms...)
	sort.Strings(sorted)
	raw := fmt.Sprintf("%s|top=%d", strings.Join(sorted, " "), top)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:%x", keyPrefix, fingerprint, hash[:16])
}
