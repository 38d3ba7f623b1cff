package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a sliding-window rate limiter keyed by caller identity.
type Limiter struct {
	mu      sync.Mutex
	hits    map[string][]time.Time
	window  time.Duration
	maxHits int
}

func NewLimiter(window time.Duration, maxHits int) *Limiter {
	return &Limiter{
		hits:    make(map[string][]time.Time),
		window:  window,
		maxHits: maxHits,
	}
}

// Allow records a hit for key and reports whether it is within the limit.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.prune(key, now)

	if len(l.hits[key]) >= l.maxHits {
		return false
	}

	l.hits[key] = append(l.hits[key], now)
	return true
}

// Remaining reports how many hits key has left in the current window.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(key, time.Now())

	remaining := l.maxHits - len(l.hits[key])
	if remaining < 0 {
		return 0
	}
	return remaining
}

// prune drops hits older than the window. Caller must hold the lock.
func (l *Limiter) prune(key string, now time.Time) {
	windowStart := now.Add(-l.window)

	hits, exists := l.hits[key]
	if !exists {
		return
	}

	valid := hits[:0]
	for _, hit := range hits {
		if hit.After(windowStart) {
			valid = append(valid, hit)
		}
	}

	if len(valid) == 0 {
		delete(l.hits, key)
		return
	}
	l.hits[key] = valid
}
