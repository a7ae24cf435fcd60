// Package ratelimit keeps one token bucket per client key in memory.
package ratelimit

import (
	"sync"
	"time"
)

// sweepEvery is how often idle buckets are dropped.
const sweepEvery = 5 * time.Minute

type bucket struct {
	tokens float64
	seen   time.Time
}

// Limiter grants each key up to limit requests per window. Buckets refill
// continuously, so a key that waits window/limit regains one request.
type Limiter struct {
	limit  float64
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	done      chan struct{}
	closeOnce sync.Once
}

// New starts a limiter along with the goroutine that forgets idle keys.
// Close stops that goroutine.
func New(limit int, window time.Duration) *Limiter {
	l := &Limiter{
		limit:   float64(limit),
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Allow takes one token from key's bucket when one is available.
func (l *Limiter) Allow(key string) bool {
	if l.limit <= 0 {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.limit, seen: now}
		l.buckets[key] = b
	}
	b.tokens = min(l.limit, b.tokens+now.Sub(b.seen).Seconds()*l.limit/l.window.Seconds())
	b.seen = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// RetryAfter is the time needed to regain a single token.
func (l *Limiter) RetryAfter() time.Duration {
	if l.limit <= 0 {
		return l.window
	}
	return time.Duration(float64(l.window) / l.limit)
}

// Close is idempotent.
func (l *Limiter) Close() {
	l.closeOnce.Do(func() { close(l.done) })
}

func (l *Limiter) sweepLoop() {
	t := time.NewTicker(sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			l.sweep()
		case <-l.done:
			return
		}
	}
}

// sweep drops buckets idle for two windows; they would be full anyway.
func (l *Limiter) sweep() {
	cutoff := l.now().Add(-2 * l.window)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}
