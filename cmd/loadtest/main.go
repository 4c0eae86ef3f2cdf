// Command loadtest drives the dashboard API with a mix of distribution,
// trend, comparison and dashboard queries and prints latency and status
// code statistics.
//
// Region and sector codes are discovered from the running service first, so
// every generated query names valid codes unless -invalid is set.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8080] [-concurrency 10] [-duration 30s]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	// InvalidEvery, when > 0, makes every n-th request use an unknown region.
	InvalidEvery int
}

type category struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// Stats collects results across workers.
type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	clientErrors  atomic.Int64
	errorCount    atomic.Int64

	mu          sync.Mutex
	latencies   []time.Duration
	statusCodes map[int]int64
	byRoute     map[string]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]int64),
		byRoute:     make(map[string]int64),
	}
}

func (s *Stats) RecordRequest(route string, duration time.Duration, statusCode int, err error) {
	s.totalRequests.Add(1)
	if err != nil {
		s.errorCount.Add(1)
		return
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		s.successCount.Add(1)
	case statusCode >= 400 && statusCode < 500:
		s.clientErrors.Add(1)
	default:
		s.errorCount.Add(1)
	}

	s.mu.Lock()
	s.latencies = append(s.latencies, duration)
	s.statusCodes[statusCode]++
	s.byRoute[route]++
	s.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the dashboard service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	invalid := flag.Int("invalid", 0, "send an unknown region code every n-th request (0 disables)")
	flag.Parse()

	cfg := Config{
		BaseURL:      *baseURL,
		Concurrency:  *concurrency,
		Duration:     *duration,
		InvalidEvery: *invalid,
	}

	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	regions, err := fetchCategories(client, cfg.BaseURL+"/api/v1/regions")
	if err != nil {
		fmt.Fprintf(os.Stderr, "discovering regions: %v\n", err)
		os.Exit(1)
	}
	sectors, err := fetchCategories(client, cfg.BaseURL+"/api/v1/sectors")
	if err != nil {
		fmt.Fprintf(os.Stderr, "discovering sectors: %v\n", err)
		os.Exit(1)
	}
	targets := buildTargets(cfg.BaseURL, regions, sectors)

	fmt.Println("=== Employment Dashboard Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d unique (%d regions x %d sectors)\n", len(targets), len(regions), len(sectors))
	fmt.Println()

	stats := runLoadTest(cfg, client, targets)
	printReport(stats, cfg.Duration)
}

type target struct {
	route string
	url   string
}

func fetchCategories(client *http.Client, rawURL string) ([]category, error) {
	resp, err := client.Get(rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode)
	}
	var cats []category
	if err := json.NewDecoder(resp.Body).Decode(&cats); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", rawURL, err)
	}
	if len(cats) == 0 {
		return nil, fmt.Errorf("GET %s: no categories", rawURL)
	}
	return cats, nil
}

// buildTargets expands every region/sector pair into the four query routes.
func buildTargets(baseURL string, regions, sectors []category) []target {
	var targets []target
	for _, r := range regions {
		targets = append(targets, target{
			route: "comparison",
			url:   fmt.Sprintf("%s/api/v1/comparison?region=%s", baseURL, url.QueryEscape(r.Code)),
		})
		for _, s := range sectors {
			q := url.Values{"region": {r.Code}, "sector": {s.Code}}.Encode()
			targets = append(targets,
				target{route: "distribution", url: baseURL + "/api/v1/distribution?" + q},
				target{route: "trend", url: baseURL + "/api/v1/trend?" + q},
				target{route: "dashboard", url: baseURL + "/api/v1/dashboard?" + q},
			)
		}
	}
	return targets
}

func runLoadTest(cfg Config, client *http.Client, targets []target) *Stats {
	stats := NewStats()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")

	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			idx := workerID

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				t := targets[idx%len(targets)]
				idx++
				if cfg.InvalidEvery > 0 && idx%cfg.InvalidEvery == 0 {
					t = target{route: "invalid", url: cfg.BaseURL + "/api/v1/distribution?region=__unknown__"}
				}

				start := time.Now()
				resp, err := client.Do(mustNewRequest(ctx, t.url))
				duration := time.Since(start)

				if err != nil {
					if ctx.Err() != nil {
						return
					}
					stats.RecordRequest(t.route, duration, 0, err)
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()

				stats.RecordRequest(t.route, duration, resp.StatusCode, nil)
			}
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func mustNewRequest(ctx context.Context, rawURL string) *http.Request {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		panic(fmt.Sprintf("creating request: %v", err))
	}
	return req
}

func printReport(stats *Stats, duration time.Duration) {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	clientErrors := stats.clientErrors.Load()
	errors := stats.errorCount.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Client Errors:   %d\n", clientErrors)
	fmt.Printf("Errors:          %d\n", errors)

	if total > 0 {
		fmt.Printf("Error Rate:      %.2f%%\n", float64(errors)/float64(total)*100)
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	stats.mu.Lock()
	defer stats.mu.Unlock()

	latencies := make([]time.Duration, len(stats.latencies))
	copy(latencies, stats.latencies)

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool {
			return latencies[i] < latencies[j]
		})

		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P90:    %s\n", percentile(latencies, 90))
		fmt.Printf("P95:    %s\n", percentile(latencies, 95))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Println()
	fmt.Println("=== Requests by Route ===")
	routes := make([]string, 0, len(stats.byRoute))
	for route := range stats.byRoute {
		routes = append(routes, route)
	}
	sort.Strings(routes)
	for _, route := range routes {
		fmt.Printf("  %-13s %d\n", route+":", stats.byRoute[route])
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.statusCodes[code])
	}

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
