// Package ratelimit throttles requests per API key with an in-memory
// token bucket. Each key's quota is supplied on every call, so keys with
// different plan limits share one limiter.
package ratelimit

import (
	"sync"
	"time"
)

// janitorInterval controls how often idle buckets are dropped.
const janitorInterval = 5 * time.Minute

// bucket holds the remaining budget for one key. Tokens refill
// continuously, so a burst that drains the bucket recovers gradually
// rather than all at once at a window boundary.
type bucket struct {
	fill    float64
	touched time.Time
}

// take refills the bucket for the elapsed time and consumes one token
// if at least one is available.
func (b *bucket) take(now time.Time, limit int, window time.Duration) bool {
	max := float64(limit)
	b.fill += now.Sub(b.touched).Seconds() * max / window.Seconds()
	if b.fill > max {
		b.fill = max
	}
	b.touched = now

	if b.fill < 1 {
		return false
	}
	b.fill--
	return true
}

// Limiter is a token-bucket rate limiter keyed by API key id.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	window  time.Duration
	clock   func() time.Time
}

// New creates a limiter whose buckets refill fully over window. A
// background janitor evicts buckets idle for more than two windows.
func New(window time.Duration) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket),
		window:  window,
		clock:   time.Now,
	}
	go l.janitor()
	return l
}

// Allow reports whether key may make another request under limit
// requests per window, consuming one token when it may.
func (l *Limiter) Allow(key string, limit int) bool {
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{fill: float64(limit) - 1, touched: now}
		return true
	}
	return b.take(now, limit, l.window)
}

// Reset forgets all state for key, restoring its full quota.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	delete(l.buckets, key)
	l.mu.Unlock()
}

func (l *Limiter) janitor() {
	for range time.Tick(janitorInterval) {
		cutoff := l.clock().Add(-2 * l.window)
		l.mu.Lock()
		for key, b := range l.buckets {
			if b.touched.Before(cutoff) {
				delete(l.buckets, key)
			}
		}
		l.mu.Unlock()
	}
}
