// Package ratelimit throttles outbound webhook traffic per target URL.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per key. Buckets are created on first use
// and resized when the configured rate changes.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// New returns an empty Limiter.
func New() *Limiter {
	return &Limiter{buckets: make(map[string]*rate.Limiter)}
}

// Allow reports whether key may proceed now. perSecond <= 0 is unlimited.
func (l *Limiter) Allow(key string, perSecond int) bool {
	if perSecond <= 0 {
		return true
	}
	return l.bucket(key, perSecond).Allow()
}

// Wait blocks until key may proceed or ctx is done. perSecond <= 0 returns
// immediately.
func (l *Limiter) Wait(ctx context.Context, key string, perSecond int) error {
	if perSecond <= 0 {
		return nil
	}
	return l.bucket(key, perSecond).Wait(ctx)
}

// Reset forgets the bucket of key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	delete(l.buckets, key)
	l.mu.Unlock()
}

func (l *Limiter) bucket(key string, perSecond int) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(rate.Limit(perSecond), perSecond)
		l.buckets[key] = b
		return b
	}
	if b.Limit() != rate.Limit(perSecond) {
		b.SetLimit(rate.Limit(perSecond))
		b.SetBurst(perSecond)
	}
	return b
}
