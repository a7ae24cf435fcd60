package cache

import (
	"context"
	"errors"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/resilience"
)

type memBackend struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
	fail error
}

func newMemBackend() *memBackend {
	return &memBackend{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memBackend) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	v, ok := m.data[key]
	if !ok {
		return nil, goredis.Nil
	}
	return v, nil
}

func (m *memBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memBackend) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return 0, m.fail
	}
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

var sample = []ranker.ScoredSentence{
	{Sentence: "The cat sat", Score: 0.26, Position: 0},
	{Sentence: "The cat ran fast", Score: 0.22, Position: 2},
}

func TestKeyIgnoresTermOrder(t *testing.T) {
	a := Key("fp1", []string{"cat", "run"}, 5)
	b := Key("fp1", []string{"run", "cat"}, 5)
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "rank:fp1:"))

	assert.NotEqual(t, a, Key("fp1", []string{"cat", "run", "run"}, 5), "multiplicity matters")
	assert.NotEqual(t, a, Key("fp1", []string{"cat", "run"}, 6))
	assert.NotEqual(t, a, Key("fp2", []string{"cat", "run"}, 5))
}

func TestKeyDoesNotMutateTerms(t *testing.T) {
	terms := []string{"run", "cat"}
	Key("fp", terms, 0)
	assert.Equal(t, []string{"run", "cat"}, terms)
}

func TestGetOrComputeCaches(t *testing.T) {
	backend := newMemBackend()
	c := New(backend, time.Minute, nil)
	ctx := context.Background()
	key := Key("fp", []string{"cat"}, 0)

	var computed int
	compute := func() ([]ranker.ScoredSentence, error) {
		computed++
		return sample, nil
	}

	got, hit, err := c.GetOrCompute(ctx, key, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, sample, got)

	got, hit, err = c.GetOrCompute(ctx, key, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, sample, got)
	assert.Equal(t, 1, computed)
	assert.Equal(t, time.Minute, backend.ttls[key])

	stats := c.Stats()
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
	assert.Equal(t, "closed", stats.Breaker)
}

func TestGetOrComputeEmptyResults(t *testing.T) {
	c := New(newMemBackend(), time.Minute, nil)
	key := Key("fp", []string{"zebra"}, 0)
	compute := func() ([]ranker.ScoredSentence, error) { return []ranker.ScoredSentence{}, nil }

	_, _, err := c.GetOrCompute(context.Background(), key, compute)
	require.NoError(t, err)
	got, hit, err := c.GetOrCompute(context.Background(), key, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestGetOrComputeError(t *testing.T) {
	c := New(newMemBackend(), time.Minute, nil)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), "k", func() ([]ranker.ScoredSentence, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestGetOrComputeCollapsesConcurrentMisses(t *testing.T) {
	c := New(newMemBackend(), time.Minute, nil)
	var computed atomic.Int32
	release := make(chan struct{})
	compute := func() ([]ranker.ScoredSentence, error) {
		computed.Add(1)
		<-release
		return sample, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, _, err := c.GetOrCompute(context.Background(), "same", compute)
			assert.NoError(t, err)
			assert.Equal(t, sample, got)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, computed.Load(), int32(8))
	assert.GreaterOrEqual(t, computed.Load(), int32(1))
}

func TestBackendFailureDegradesToCompute(t *testing.T) {
	backend := newMemBackend()
	backend.fail = errors.New("connection refused")
	breaker := resilience.NewCircuitBreaker("test", resilience.CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour})
	c := New(backend, time.Minute, breaker)

	for i := 0; i < 3; i++ {
		got, hit, err := c.GetOrCompute(context.Background(), "k", func() ([]ranker.ScoredSentence, error) {
			return sample, nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, sample, got)
	}
	assert.Equal(t, resilience.StateOpen, breaker.GetState())
	assert.Positive(t, c.Stats().Errors)
	assert.Equal(t, "open", c.Stats().Breaker)
}

func TestInvalidate(t *testing.T) {
	backend := newMemBackend()
	backend.data["rank:fp:aa"] = []byte("[]")
	backend.data["rank:fp:bb"] = []byte("[]")
	backend.data["other:key"] = []byte("x")
	c := New(backend, time.Minute, nil)

	n, err := c.Invalidate(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Contains(t, backend.data, "other:key")
}
