package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestLimiter(limit int, window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := New(limit, window)
	l.now = clock.now
	return l, clock
}

func TestAllowExhaustsBucket(t *testing.T) {
	l, _ := newTestLimiter(3, time.Minute)
	defer l.Close()

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("10.0.0.1"), "request %d", i)
	}
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "keys are independent")
}

func TestAllowRefills(t *testing.T) {
	l, clock := newTestLimiter(2, time.Minute)
	defer l.Close()

	assert.True(t, l.Allow("k"))
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))

	clock.t = clock.t.Add(30 * time.Second)
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))
}

func TestSweepForgetsIdleKeys(t *testing.T) {
	l, clock := newTestLimiter(1, time.Minute)
	defer l.Close()

	assert.True(t, l.Allow("idle"))
	clock.t = clock.t.Add(90 * time.Second)
	assert.True(t, l.Allow("busy"))

	clock.t = clock.t.Add(60 * time.Second)
	l.sweep()
	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.buckets, "idle")
	assert.Contains(t, l.buckets, "busy")
}

func TestZeroLimitDeniesEverything(t *testing.T) {
	l, _ := newTestLimiter(0, time.Minute)
	defer l.Close()
	assert.False(t, l.Allow("k"))
	assert.Equal(t, time.Minute, l.RetryAfter())
}

func TestRetryAfter(t *testing.T) {
	l := New(60, time.Minute)
	defer l.Close()
	assert.Equal(t, time.Second, l.RetryAfter())
}

func TestCloseIdempotent(t *testing.T) {
	l := New(1, time.Second)
	l.Close()
	l.Close()
}
