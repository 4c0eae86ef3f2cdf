// Command dashboard starts the employment dashboard API.
//
// It loads the JSON-stat employment file once at startup (from disk or over
// HTTP), builds an immutable Processor from it, and serves category lists,
// gender distributions, trends and sector comparisons under /api/v1. Query
// events are published to Kafka for the analytics service when enabled, and
// per-client rate limits are shared through Redis when enabled.
//
// Usage:
//
//	go run ./cmd/dashboard [-config configs/development.yaml]
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
	"github.com/siyabendoezdemir/m323/internal/dashboard"
	"github.com/siyabendoezdemir/m323/internal/dataset"
	"github.com/siyabendoezdemir/m323/pkg/config"
	"github.com/siyabendoezdemir/m323/pkg/health"
	"github.com/siyabendoezdemir/m323/pkg/kafka"
	"github.com/siyabendoezdemir/m323/pkg/logger"
	"github.com/siyabendoezdemir/m323/pkg/metrics"
	"github.com/siyabendoezdemir/m323/pkg/ratelimit"
	"github.com/siyabendoezdemir/m323/pkg/redis"
	"github.com/siyabendoezdemir/m323/pkg/resilience"
	"github.com/siyabendoezdemir/m323/pkg/tracing"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.SetupService("dashboard", cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting dashboard service", "port", cfg.Server.Port, "source", cfg.Dataset.Source)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	// Dataset: a load or validation failure is fatal.
	raw, processor, err := loadDataset(ctx, cfg.Dataset)
	if err != nil {
		slog.Error("failed to load dataset", "error", err)
		os.Exit(1)
	}
	counts := processor.Counts()
	m.DatasetCells.Set(float64(counts.Cells()))
	m.DimensionSize.WithLabelValues("region").Set(float64(counts.Regions))
	m.DimensionSize.WithLabelValues("sector").Set(float64(counts.Sectors))
	m.DimensionSize.WithLabelValues("gender").Set(float64(counts.Genders))
	m.DimensionSize.WithLabelValues("quarter").Set(float64(counts.Quarters))
	slog.Info("dataset ready",
		"regions", counts.Regions,
		"sectors", counts.Sectors,
		"genders", counts.Genders,
		"quarters", counts.Quarters,
	)

	checker := health.NewChecker()
	checker.RegisterCritical("dataset", func(ctx context.Context) health.ComponentHealth {
		h := health.Up()
		h.Message = fmt.Sprintf("%d cells", counts.Cells())
		return h
	})

	g, gctx := errgroup.WithContext(ctx)

	// Rate limiting: in-memory per instance, shared through Redis when enabled.
	var limiter ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		memory := ratelimit.NewMemory(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		g.Go(func() error {
			memory.Run(gctx, cfg.RateLimit.Window)
			return nil
		})
		limiter = memory

		if cfg.Redis.Enabled {
			rdb, err := redis.NewClient(cfg.Redis)
			if err != nil {
				slog.Warn("redis unavailable, rate limits stay per instance", "error", err)
			} else {
				defer rdb.Close()
				breaker := resilience.NewCircuitBreaker("ratelimit-redis", resilience.CircuitBreakerConfig{
					FailureThreshold: 5,
					ResetTimeout:     30 * time.Second,
					OnStateChange: func(name string, _, to resilience.State) {
						m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
					},
				})
				limiter = ratelimit.NewRedis(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.KeyPrefix, breaker, memory)
				checker.Register("redis", health.PingCheck(rdb.Ping))
				slog.Info("rate limits shared through redis", "addr", cfg.Redis.Addr)
			}
		}
	}

	// Query events go to Kafka for the analytics service.
	var tracker analytics.Tracker = analytics.Discard{}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, analytics.CollectorConfig{BufferSize: cfg.Analytics.BufferSize}, m)
		collector.Start(gctx)
		defer collector.Close()
		tracker = collector
		checker.Register("kafka", health.PingCheck(producer.Ping))
		slog.Info("publishing query events", "topic", cfg.Kafka.Topics.QueryEvents)
	}

	handler := dashboard.NewHandler(processor, raw, dashboard.Defaults{
		Region: cfg.Dataset.Codes.DefaultRegion,
		Sector: cfg.Dataset.Codes.DefaultSector,
	}, tracker, m)

	opts := dashboard.RouterOptions{
		AllowOrigins:    cfg.Server.AllowOrigins,
		RequestTimeout:  cfg.Server.RequestTimeout,
		Limiter:         limiter,
		RateLimitWindow: cfg.RateLimit.Window,
	}
	if cfg.Metrics.Enabled {
		opts.Metrics = m
		shutdownMetrics := m.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}

	router, err := dashboard.NewRouter(handler, checker, opts)
	if err != nil {
		slog.Error("failed to build router", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g.Go(func() error {
		slog.Info("dashboard service listening", "addr", server.Addr)
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
		slog.Error("dashboard service error", "error", err)
		os.Exit(1)
	}
	slog.Info("dashboard service stopped")
}

// loadDataset reads, decodes and validates the dataset under one trace that
// is logged when done.
func loadDataset(ctx context.Context, cfg config.DatasetConfig) ([]byte, *dataset.Processor, error) {
	ctx, span := tracing.Start(ctx, "dataset.startup")
	span.SetAttr("source", cfg.Source)
	defer span.Log(slog.Default())

	loader := dataset.NewLoader(cfg.FetchTimeout, cfg.FetchAttempts)
	raw, decoded, err := loader.Load(ctx, cfg.Source)
	if err != nil {
		span.End(err)
		return nil, nil, err
	}

	var processor *dataset.Processor
	err = tracing.Run(ctx, "dataset.validate", func(context.Context) error {
		var buildErr error
		processor, buildErr = dataset.New(decoded, dataset.Layout{
			Dimensions: dataset.DimensionNames{
				Region:  cfg.Dimensions.Region,
				Sector:  cfg.Dimensions.Sector,
				Gender:  cfg.Dimensions.Gender,
				Quarter: cfg.Dimensions.Quarter,
			},
			Codes: dataset.Codes{
				Male:        cfg.Codes.Male,
				Female:      cfg.Codes.Female,
				SectorTotal: cfg.Codes.SectorTotal,
			},
		})
		return buildErr
	})
	span.End(err)
	if err != nil {
		return nil, nil, fmt.Errorf("building processor from %s: %w", cfg.Source, err)
	}
	return raw, processor, nil
}
