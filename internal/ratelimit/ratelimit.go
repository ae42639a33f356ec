// Package ratelimit provides keyed token buckets for request throttling.
package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens     int
	lastRefill time.Time
}

// Limiter keeps one token bucket per key. Each bucket holds up to maxTokens
// and regains one token every refillInterval.
type Limiter struct {
	mu             sync.Mutex
	buckets        map[string]*bucket
	maxTokens      int
	refillInterval time.Duration
	now            func() time.Time
}

// New creates a limiter allowing maxTokens calls per key per refillInterval
// burst. A non-positive maxTokens disables limiting.
func New(maxTokens int, refillInterval time.Duration) *Limiter {
	return &Limiter{
		buckets:        make(map[string]*bucket),
		maxTokens:      maxTokens,
		refillInterval: refillInterval,
		now:            time.Now,
	}
}

// PerMinute allows n calls per key per minute.
func PerMinute(n int) *Limiter {
	if n <= 0 {
		return New(0, time.Minute)
	}
	return New(n, time.Minute/time.Duration(n))
}

// Allow takes a token for key if one is available.
func (l *Limiter) Allow(key string) bool {
	if l == nil || l.maxTokens <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.refill(key)
	if b.tokens == 0 {
		return false
	}
	b.tokens--
	return true
}

func (l *Limiter) refill(key string) *bucket {
	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.maxTokens, lastRefill: now}
		l.buckets[key] = b
		return b
	}
	newTokens := int(now.Sub(b.lastRefill) / l.refillInterval)
	if newTokens > 0 {
		b.tokens += newTokens
		if b.tokens > l.maxTokens {
			b.tokens = l.maxTokens
		}
		b.lastRefill = b.lastRefill.Add(time.Duration(newTokens) * l.refillInterval)
	}
	return b
}
