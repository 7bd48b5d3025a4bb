// Package ratelimit provides a keyed fixed-window rate limiter, used by
// the API server to bound transaction submissions per client.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a fixed-window rate limiter tracking one window per key
// (typically a client IP).
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	rate    int
	span    time.Duration
}

type window struct {
	count int
	start time.Time
}

// New creates a Limiter that allows rate requests per span for each key.
func New(rate int, span time.Duration) *Limiter {
	return &Limiter{
		windows: make(map[string]*window),
		rate:    rate,
		span:    span,
	}
}

// Allow reports whether a request for key is within the rate limit.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) > l.span {
		l.windows[key] = &window{count: 1, start: now}
		return true
	}
	w.count++
	return w.count <= l.rate
}

// Cleanup removes keys whose window has expired. Callers run it
// periodically; the limiter does not start its own goroutine.
func (l *Limiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	for key, w := range l.windows {
		if now.Sub(w.start) > l.span {
			delete(l.windows, key)
		}
	}
}
