// Package ratelimit limits requests per client key. Memory is a process-local
// token bucket; Redis shares a fixed-window counter between replicas and
// falls back to a Memory limiter while Redis is unreachable.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter decides whether the client identified by key may make another
// request. A non-nil error means the decision could not be made.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// entry tracks the token-bucket state for a single key.
type entry struct {
	tokens    float64
	lastCheck time.Time
}

// Memory implements an in-memory token-bucket rate limiter. Each key gets
// limit tokens per window, refilled continuously.
type Memory struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// NewMemory creates a token-bucket limiter allowing limit requests per window.
func NewMemory(limit int, window time.Duration) *Memory {
	return &Memory{
		limit:   limit,
		window:  window,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Allow consumes one token for key. It never returns an error.
func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, exists := m.entries[key]
	if !exists {
		m.entries[key] = &entry{
			tokens:    float64(m.limit - 1),
			lastCheck: now,
		}
		return m.limit > 0, nil
	}

	elapsed := now.Sub(e.lastCheck)
	e.lastCheck = now

	rate := float64(m.limit) / m.window.Seconds()
	e.tokens += elapsed.Seconds() * rate
	if e.tokens > float64(m.limit) {
		e.tokens = float64(m.limit)
	}

	if e.tokens < 1 {
		return false, nil
	}
	e.tokens--
	return true, nil
}

// Reset clears the rate-limit state for a specific key.
func (m *Memory) Reset(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// Sweep removes entries idle for more than two windows and returns how many
// were removed.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-2 * m.window)
	removed := 0
	for key, e := range m.entries {
		if e.lastCheck.Before(cutoff) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// Run sweeps idle entries every interval until ctx is done.
func (m *Memory) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
