package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/siyabendoezdemir/m323/internal/analytics"
)

// Saver persists one snapshot; *Store implements it.
type Saver interface {
	Save(ctx context.Context, stats analytics.Stats) error
}

// Scheduler snapshots a stats source on a cron schedule and once more when
// stopped.
type Scheduler struct {
	saver   Saver
	source  func() analytics.Stats
	timeout time.Duration
	cron    *cron.Cron
	logger  *slog.Logger
}

// NewScheduler validates schedule (standard five-field cron or descriptors such
// as "@every 1m") and registers the snapshot job.
func NewScheduler(saver Saver, source func() analytics.Stats, schedule string) (*Scheduler, error) {
	s := &Scheduler{
		saver:   saver,
		source:  source,
		timeout: 10 * time.Second,
		cron:    cron.New(),
		logger:  slog.Default().With("component", "snapshot-scheduler"),
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid snapshot schedule %q: %w", schedule, err)
	}
	return s, nil
}

// RunOnce takes and saves one snapshot.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.saver.Save(ctx, s.source()); err != nil {
		s.logger.Error("snapshot failed", "error", err)
		return err
	}
	return nil
}

// Run starts the schedule and blocks until ctx is done, then waits for a
// running job and writes a final snapshot.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	s.logger.Info("snapshot scheduler started", "entries", len(s.cron.Entries()))
	<-ctx.Done()

	<-s.cron.Stop().Done()
	if err := s.RunOnce(context.Background()); err != nil {
		return fmt.Errorf("final snapshot: %w", err)
	}
	return nil
}
