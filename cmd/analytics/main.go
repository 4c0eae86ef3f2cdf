// Command analytics starts the dashboard usage analytics service.
//
// It consumes query events published by the dashboard service from Kafka,
// aggregates them in memory (query counts per type, latency percentiles,
// popular regions, sectors and quarters), optionally snapshots the aggregate
// to PostgreSQL on a cron schedule, and exposes GET /api/v1/analytics and
// GET /api/v1/analytics/snapshots.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/siyabendoezdemir/m323/internal/analytics"
	"github.com/siyabendoezdemir/m323/internal/analytics/snapshot"
	"github.com/siyabendoezdemir/m323/pkg/config"
	"github.com/siyabendoezdemir/m323/pkg/health"
	"github.com/siyabendoezdemir/m323/pkg/kafka"
	"github.com/siyabendoezdemir/m323/pkg/logger"
	"github.com/siyabendoezdemir/m323/pkg/metrics"
	"github.com/siyabendoezdemir/m323/pkg/middleware"
	"github.com/siyabendoezdemir/m323/pkg/postgres"
	"golang.org/x/sync/errgroup"
)

// main wires the Kafka consumer into the aggregator, the optional snapshot
// store and scheduler, and the HTTP API. Graceful shutdown is triggered by
// SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.SetupService("analytics", cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Analytics.Port)

	if !cfg.Kafka.Enabled {
		slog.Error("analytics service needs kafka.enabled: there is no other event source")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	aggregator := analytics.NewAggregator(cfg.Analytics.TopN)
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents, analytics.HandleEvent(aggregator))

	checker := health.NewChecker()
	checker.RegisterCritical("kafka", func(ctx context.Context) health.ComponentHealth {
		stats := consumer.Stats()
		h := health.Up()
		h.Message = fmt.Sprintf("%d messages consumed, %d errors", stats.Messages, stats.Errors)
		return h
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Start(gctx)
	})
	slog.Info("consuming query events", "topic", cfg.Kafka.Topics.QueryEvents, "group", cfg.Kafka.ConsumerGroup)

	// Snapshots are optional; without PostgreSQL the stats live in memory only.
	var lister analytics.SnapshotLister
	if cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		store := snapshot.NewStore(db)
		if err := store.Migrate(ctx); err != nil {
			slog.Error("failed to migrate snapshot store", "error", err)
			os.Exit(1)
		}
		scheduler, err := snapshot.NewScheduler(store, aggregator.Stats, cfg.Analytics.SnapshotSchedule)
		if err != nil {
			slog.Error("failed to create snapshot scheduler", "error", err)
			os.Exit(1)
		}
		g.Go(func() error {
			return scheduler.Run(gctx)
		})
		lister = store
		checker.Register("postgres", health.PingCheck(db.Ping))
		slog.Info("snapshotting analytics", "schedule", cfg.Analytics.SnapshotSchedule)
	}

	mux := http.NewServeMux()
	analytics.NewHandler(aggregator, lister).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	if cfg.Metrics.Enabled {
		chain = middleware.Metrics(m)(chain)
		shutdownMetrics := m.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Analytics.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g.Go(func() error {
		slog.Info("analytics service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("analytics service error", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}
