package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/siyabendoezdemir/m323/pkg/resilience"
)

// Counter is the store behind Redis; *redis.Client implements it.
type Counter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Redis is a fixed-window limiter backed by a shared counter. Calls to the
// store go through a circuit breaker; while the breaker is open or the store
// errors, decisions come from the fallback limiter instead.
type Redis struct {
	store    Counter
	limit    int
	window   time.Duration
	prefix   string
	breaker  *resilience.CircuitBreaker
	fallback Limiter
	logger   *slog.Logger
}

// NewRedis creates a Redis limiter. fallback may be nil, in which case store
// failures let the request through.
func NewRedis(store Counter, limit int, window time.Duration, prefix string, breaker *resilience.CircuitBreaker, fallback Limiter) *Redis {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("ratelimit-redis", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
		})
	}
	return &Redis{
		store:    store,
		limit:    limit,
		window:   window,
		prefix:   prefix,
		breaker:  breaker,
		fallback: fallback,
		logger:   slog.Default().With("component", "ratelimit-redis"),
	}
}

// Allow counts the request in the current window for key.
func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	var count int64
	err := r.breaker.Execute(func() error {
		n, err := r.store.IncrWindow(ctx, r.prefix+key, r.window)
		if err != nil {
			return err
		}
		count = n
		return nil
	})
	if err != nil {
		r.logger.Debug("shared limiter unavailable, using fallback", "error", err)
		if r.fallback == nil {
			return true, nil
		}
		return r.fallback.Allow(ctx, key)
	}
	return count <= int64(r.limit), nil
}
