package snapshot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/siyabendoezdemir/m323/internal/analytics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSaver struct {
	mu    sync.Mutex
	saved []analytics.Stats
	err   error
}

func (r *recordingSaver) Save(_ context.Context, stats analytics.Stats) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, stats)
	return nil
}

func (r *recordingSaver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saved)
}

func TestNewScheduler_RejectsBadSchedule(t *testing.T) {
	_, err := NewScheduler(&recordingSaver{}, func() analytics.Stats { return analytics.Stats{} }, "every minute")
	assert.ErrorContains(t, err, "invalid snapshot schedule")
}

func TestScheduler_RunOnce(t *testing.T) {
	saver := &recordingSaver{}
	s, err := NewScheduler(saver, func() analytics.Stats { return analytics.Stats{TotalQueries: 7} }, "@every 1h")
	require.NoError(t, err)

	require.NoError(t, s.RunOnce(context.Background()))
	require.Equal(t, 1, saver.count())
	assert.Equal(t, int64(7), saver.saved[0].TotalQueries)

	saver.err = errors.New("db down")
	assert.Error(t, s.RunOnce(context.Background()))
}

func TestScheduler_RunSnapshotsOnSchedule(t *testing.T) {
	saver := &recordingSaver{}
	s, err := NewScheduler(saver, func() analytics.Stats { return analytics.Stats{} }, "@every 1s")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return saver.count() >= 1 }, 3*time.Second, 20*time.Millisecond)
	before := saver.count()
	cancel()
	require.NoError(t, <-done)
	assert.GreaterOrEqual(t, saver.count(), before+1, "a final snapshot is written on stop")
}
