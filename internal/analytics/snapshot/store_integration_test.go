//go:build integration

// Run with:
//
//	go test -v -tags=integration ./internal/analytics/snapshot/...
package snapshot

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/siyabendoezdemir/m323/internal/analytics"
	"github.com/siyabendoezdemir/m323/pkg/config"
	"github.com/siyabendoezdemir/m323/pkg/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	port, err := strconv.Atoi(envOrDefault("TEST_POSTGRES_PORT", "5432"))
	require.NoError(t, err)
	db, err := postgres.New(context.Background(), config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            port,
		Database:        envOrDefault("TEST_POSTGRES_DB", "employment_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "employment"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestStore_SaveAndList(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()

	store := NewStore(db)
	require.NoError(t, store.Migrate(ctx))
	_, err := db.DB.ExecContext(ctx, `TRUNCATE analytics_snapshots`)
	require.NoError(t, err)

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, store.Save(ctx, analytics.Stats{TotalQueries: 1}))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, store.Save(ctx, analytics.Stats{
		TotalQueries: 2,
		ByType:       map[analytics.QueryType]int64{analytics.QueryTrend: 2},
		TopRegions:   []analytics.CodeCount{{Code: "0", Count: 2}},
	}))

	latest, err = store.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(2), latest.Stats.TotalQueries)
	assert.Equal(t, int64(2), latest.Stats.ByType[analytics.QueryTrend])

	snaps, err := store.ListSnapshots(ctx, 10)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, int64(2), snaps[0].Stats.TotalQueries)
	assert.Equal(t, int64(1), snaps[1].Stats.TotalQueries)

	// Migrate is idempotent.
	require.NoError(t, store.Migrate(ctx))
}
