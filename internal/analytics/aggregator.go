package analytics

import (
	"context"
	"log/slog"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/siyabendoezdemir/m323/pkg/kafka"
)

// maxLatencySamples bounds the window the latency percentiles are taken over.
const maxLatencySamples = 10000

// Stats summarizes the query events seen since the aggregator started.
type Stats struct {
	TotalQueries     int64               `json:"total_queries"`
	ByType           map[QueryType]int64 `json:"by_type"`
	InvalidQueries   int64               `json:"invalid_queries"`
	FailedQueries    int64               `json:"failed_queries"`
	AvgLatencyMs     float64             `json:"avg_latency_ms"`
	P50LatencyMs     float64             `json:"p50_latency_ms"`
	P95LatencyMs     float64             `json:"p95_latency_ms"`
	P99LatencyMs     float64             `json:"p99_latency_ms"`
	TopRegions       []CodeCount         `json:"top_regions"`
	TopSectors       []CodeCount         `json:"top_sectors"`
	TopQuarters      []CodeCount         `json:"top_quarters"`
	QueriesPerMinute float64             `json:"queries_per_minute"`
	Since            time.Time           `json:"since"`
}

// CodeCount is how often a category code was asked for.
type CodeCount struct {
	Code  string `json:"code"`
	Count int64  `json:"count"`
}

// Aggregator folds QueryEvents into running totals. It is safe for
// concurrent use.
type Aggregator struct {
	topN      int
	startTime time.Time
	now       func() time.Time
	logger    *slog.Logger

	mu        sync.RWMutex
	total     int64
	invalid   int64
	failed    int64
	byType    map[QueryType]int64
	latencies []float64
	next      int
	regions   map[string]int64
	sectors   map[string]int64
	quarters  map[string]int64
}

// NewAggregator creates an Aggregator reporting the topN most requested
// codes per dimension.
func NewAggregator(topN int) *Aggregator {
	if topN <= 0 {
		topN = 10
	}
	return &Aggregator{
		topN:      topN,
		startTime: time.Now(),
		now:       time.Now,
		logger:    slog.Default().With("component", "analytics-aggregator"),
		byType:    make(map[QueryType]int64),
		latencies: make([]float64, 0, 1024),
		regions:   make(map[string]int64),
		sectors:   make(map[string]int64),
		quarters:  make(map[string]int64),
	}
}

// HandleEvent adapts the aggregator to a Kafka consumer. Undecodable
// messages are logged and skipped so they are still committed.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[QueryEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode query event", "key", string(key), "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

func (a *Aggregator) Record(event QueryEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	a.byType[event.Type]++
	switch event.Status {
	case StatusInvalid:
		a.invalid++
	case StatusError:
		a.failed++
	}

	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % maxLatencySamples
	}

	if event.Status != StatusOK {
		return
	}
	if event.Region != "" {
		a.regions[event.Region]++
	}
	if event.Sector != "" {
		a.sectors[event.Sector]++
	}
	if event.Quarter != "" {
		a.quarters[event.Quarter]++
	}
}

func (a *Aggregator) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := Stats{
		TotalQueries:   a.total,
		ByType:         maps.Clone(a.byType),
		InvalidQueries: a.invalid,
		FailedQueries:  a.failed,
		TopRegions:     topN(a.regions, a.topN),
		TopSectors:     topN(a.sectors, a.topN),
		TopQuarters:    topN(a.quarters, a.topN),
		Since:          a.startTime.UTC(),
	}
	if len(a.latencies) > 0 {
		sorted := make([]float64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Float64s(sorted)

		var sum float64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = sum / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(a.total) / elapsed
	}
	return stats
}

func percentile(sorted []float64, pct int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []CodeCount {
	result := make([]CodeCount, 0, len(counts))
	for code, count := range counts {
		result = append(result, CodeCount{Code: code, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Code < result[j].Code
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
