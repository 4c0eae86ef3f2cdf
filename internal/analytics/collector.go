package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/siyabendoezdemir/m323/pkg/kafka"
	"github.com/siyabendoezdemir/m323/pkg/metrics"
)

// Publisher delivers a batch of events; *kafka.Producer implements it.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// CollectorConfig sizes the in-memory buffer and the publish batches.
type CollectorConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

func (c CollectorConfig) withDefaults() CollectorConfig {
	if c.BufferSize <= 0 {
		c.BufferSize = 10000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 2 * time.Second
	}
	return c
}

// Collector buffers query events and publishes them in batches from a
// background goroutine. Track never blocks: when the buffer is full the
// event is dropped and counted.
type Collector struct {
	publisher Publisher
	cfg       CollectorConfig
	metrics   *metrics.Metrics
	logger    *slog.Logger

	eventCh   chan QueryEvent
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	published atomic.Int64
	dropped   atomic.Int64
}

// NewCollector creates a Collector. m may be nil.
func NewCollector(publisher Publisher, cfg CollectorConfig, m *metrics.Metrics) *Collector {
	cfg = cfg.withDefaults()
	return &Collector{
		publisher: publisher,
		cfg:       cfg,
		metrics:   m,
		logger:    slog.Default().With("component", "analytics-collector"),
		eventCh:   make(chan QueryEvent, cfg.BufferSize),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the publish loop. It runs until ctx is cancelled or Close
// is called, then publishes whatever is still buffered.
func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
	c.logger.Info("analytics collector started",
		"buffer_size", c.cfg.BufferSize,
		"batch_size", c.cfg.BatchSize,
		"flush_interval", c.cfg.FlushInterval,
	)
}

func (c *Collector) Track(event QueryEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case c.eventCh <- event:
	default:
		c.drop(1)
		c.logger.Warn("analytics event dropped (buffer full)", "type", event.Type)
	}
}

// Close stops the loop and waits for the final flush.
func (c *Collector) Close() {
	c.closeOnce.Do(func() { close(c.stop) })
	<-c.done
}

func (c *Collector) Published() int64 { return c.published.Load() }
func (c *Collector) Dropped() int64   { return c.dropped.Load() }

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.cfg.BatchSize)
	for {
		select {
		case event := <-c.eventCh:
			batch = append(batch, kafka.Event{Key: string(event.Type), Value: event})
			if len(batch) >= c.cfg.BatchSize {
				batch = c.flush(ctx, batch)
			}
		case <-ticker.C:
			batch = c.flush(ctx, batch)
		case <-ctx.Done():
			c.shutdown(batch)
			return
		case <-c.stop:
			c.shutdown(batch)
			return
		}
	}
}

// shutdown drains the buffer and publishes it with a short deadline of its
// own, since the loop's context may already be cancelled.
func (c *Collector) shutdown(batch []kafka.Event) {
drain:
	for {
		select {
		case event := <-c.eventCh:
			batch = append(batch, kafka.Event{Key: string(event.Type), Value: event})
		default:
			break drain
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.flush(ctx, batch)
	c.logger.Info("analytics collector stopped",
		"published", c.published.Load(),
		"dropped", c.dropped.Load(),
	)
}

func (c *Collector) flush(ctx context.Context, batch []kafka.Event) []kafka.Event {
	if len(batch) == 0 {
		return batch
	}
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.drop(len(batch))
		c.logger.Error("failed to publish analytics events", "count", len(batch), "error", err)
	} else {
		c.published.Add(int64(len(batch)))
		if c.metrics != nil {
			c.metrics.AnalyticsEventsPublished.Add(float64(len(batch)))
		}
	}
	return make([]kafka.Event, 0, c.cfg.BatchSize)
}

func (c *Collector) drop(n int) {
	c.dropped.Add(int64(n))
	if c.metrics != nil {
		c.metrics.AnalyticsEventsDropped.Add(float64(n))
	}
}
