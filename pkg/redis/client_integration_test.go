//go:build integration

// Run with:
//
//	go test -v -tags=integration ./pkg/redis/...
package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/siyabendoezdemir/m323/pkg/config"
	"github.com/siyabendoezdemir/m323/pkg/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipIfNoRedis(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	c, err := NewClient(config.RedisConfig{Addr: addr, PoolSize: 2})
	if err != nil {
		t.Skipf("skipping integration test: redis unavailable: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestIncrWindow_CountsAndExpires(t *testing.T) {
	c := skipIfNoRedis(t)
	ctx := context.Background()
	key := "test:incr-window:" + t.Name()
	require.NoError(t, c.Del(ctx, key))

	for want := int64(1); want <= 3; want++ {
		n, err := c.IncrWindow(ctx, key, 200*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	require.Eventually(t, func() bool {
		n, err := c.IncrWindow(ctx, key, time.Minute)
		return err == nil && n == 1
	}, 2*time.Second, 300*time.Millisecond)
	require.NoError(t, c.Del(ctx, key))
}

func TestRedisLimiter_SharedAcrossInstances(t *testing.T) {
	c := skipIfNoRedis(t)
	ctx := context.Background()
	prefix := "test:ratelimit:" + t.Name() + ":"
	require.NoError(t, c.Del(ctx, prefix+"10.0.0.1"))
	t.Cleanup(func() { c.Del(ctx, prefix+"10.0.0.1") })

	a := ratelimit.NewRedis(c, 2, time.Minute, prefix, nil, nil)
	b := ratelimit.NewRedis(c, 2, time.Minute, prefix, nil, nil)

	ok, err := a.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = b.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = a.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)
}
