package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/siyabendoezdemir/m323/internal/analytics"
	"github.com/siyabendoezdemir/m323/internal/dataset"
	"github.com/siyabendoezdemir/m323/pkg/health"
	"github.com/siyabendoezdemir/m323/pkg/metrics"
	"github.com/siyabendoezdemir/m323/pkg/middleware"
	"github.com/siyabendoezdemir/m323/pkg/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTracker struct {
	mu     sync.Mutex
	events []analytics.QueryEvent
}

func (r *recordingTracker) Track(e analytics.QueryEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingTracker) last() analytics.QueryEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type fixture struct {
	raw     []byte
	tracker *recordingTracker
	metrics *metrics.Metrics
	mux     *http.ServeMux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("..", "dataset", "testdata", "employment.json"))
	require.NoError(t, err)
	decoded, err := dataset.Decode(raw)
	require.NoError(t, err)
	p, err := dataset.New(decoded, dataset.DefaultLayout())
	require.NoError(t, err)

	f := &fixture{
		raw:     raw,
		tracker: &recordingTracker{},
		metrics: metrics.New(prometheus.NewRegistry()),
		mux:     http.NewServeMux(),
	}
	NewHandler(p, raw, Defaults{Region: "0", Sector: "TOT"}, f.tracker, f.metrics).Register(f.mux)
	return f
}

func (f *fixture) get(t *testing.T, target string, out any) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	if out != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func TestEmploymentData_ServesRawDocument(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/api/v1/employment-data", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, f.raw, rec.Body.Bytes())
	assert.Equal(t, analytics.QueryRawData, f.tracker.last().Type)
}

func TestMetadata(t *testing.T) {
	f := newFixture(t)
	var meta dataset.Metadata
	rec := f.get(t, "/api/v1/metadata", &meta)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bundesamt für Statistik", meta.Source)
	assert.Equal(t, dataset.Counts{Regions: 2, Sectors: 3, Genders: 3, Quarters: 2}, meta.Counts)
}

func TestCategoryRoutes(t *testing.T) {
	tests := []struct {
		path      string
		wantCount int
		wantFirst string
	}{
		{"/api/v1/regions", 2, "0"},
		{"/api/v1/sectors", 3, "2"},
		{"/api/v1/genders", 3, "1"},
		{"/api/v1/quarters", 2, "2024Q1"},
	}
	f := newFixture(t)
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var cats []dataset.Category
			rec := f.get(t, tt.path, &cats)
			require.Equal(t, http.StatusOK, rec.Code)
			require.Len(t, cats, tt.wantCount)
			assert.Equal(t, tt.wantFirst, cats[0].Code)
			assert.Equal(t, 0, cats[0].Position)
		})
	}
}

func TestLatestQuarter(t *testing.T) {
	f := newFixture(t)
	var latest dataset.Category
	rec := f.get(t, "/api/v1/quarters/latest", &latest)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024Q2", latest.Code)
	assert.Equal(t, 1, latest.Position)
}

func TestDistribution(t *testing.T) {
	f := newFixture(t)
	var resp distributionResponse
	rec := f.get(t, "/api/v1/distribution?region=0&sector=3&quarter=2024Q2", &resp)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Schweiz", resp.Region.Label)
	assert.Equal(t, 120000.0, resp.Male)
	assert.Equal(t, 95000.0, resp.Female)
	assert.Equal(t, "55.8", resp.MalePercentage)
	assert.Equal(t, "44.2", resp.FemalePercentage)

	event := f.tracker.last()
	assert.Equal(t, analytics.QueryDistribution, event.Type)
	assert.Equal(t, analytics.StatusOK, event.Status)
	assert.Equal(t, "3", event.Sector)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.QueriesTotal.WithLabelValues("distribution", "ok")))
}

func TestDistribution_Defaults(t *testing.T) {
	f := newFixture(t)
	var resp distributionResponse
	rec := f.get(t, "/api/v1/distribution", &resp)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", resp.Region.Code)
	assert.Equal(t, "TOT", resp.Sector.Code)
	assert.Equal(t, "2024Q2", resp.Quarter.Code)
	assert.Equal(t, resp.Male+resp.Female, resp.Total)
}

func TestQueryEvents_RecordResolvedQuarter(t *testing.T) {
	tests := []struct {
		target   string
		wantType analytics.QueryType
	}{
		{"/api/v1/distribution?region=0&sector=3", analytics.QueryDistribution},
		{"/api/v1/comparison?region=0", analytics.QueryComparison},
		{"/api/v1/dashboard?region=0&sector=3", analytics.QueryDashboard},
	}
	f := newFixture(t)
	for _, tt := range tests {
		t.Run(string(tt.wantType), func(t *testing.T) {
			rec := f.get(t, tt.target, nil)
			require.Equal(t, http.StatusOK, rec.Code)

			event := f.tracker.last()
			assert.Equal(t, tt.wantType, event.Type)
			assert.Equal(t, "2024Q2", event.Quarter)
		})
	}
}

func TestDistribution_UnknownCode(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantMsg string
	}{
		{"region", "region=99", `unknown region category code "99"`},
		{"sector", "sector=9", `unknown sector category code "9"`},
		{"quarter", "quarter=1999Q1", `unknown quarter category code "1999Q1"`},
	}
	f := newFixture(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.get(t, "/api/v1/distribution?"+tt.query, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantMsg, body["error"])
			assert.Equal(t, analytics.StatusInvalid, f.tracker.last().Status)
		})
	}
}

func TestTrend(t *testing.T) {
	f := newFixture(t)
	var resp trendResponse
	rec := f.get(t, "/api/v1/trend?region=0&sector=3", &resp)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Points, 2)
	assert.Equal(t, "2024Q1", resp.Points[0].QuarterCode)
	assert.Equal(t, "2024Q2", resp.Points[1].QuarterCode)
	assert.Equal(t, 120000.0, resp.Points[1].Male)
}

func TestComparison_ExcludesSectorTotal(t *testing.T) {
	f := newFixture(t)
	var resp comparisonResponse
	rec := f.get(t, "/api/v1/comparison?region=0&quarter=2024Q2", &resp)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Sectors, 2)
	for _, s := range resp.Sectors {
		assert.NotEqual(t, "TOT", s.SectorCode)
	}
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	var resp dashboardResponse
	rec := f.get(t, "/api/v1/dashboard?region=0&sector=3", &resp)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024Q2", resp.LatestQuarter.Code)
	assert.Equal(t, "55.8", resp.Distribution.MalePercentage)
	assert.Len(t, resp.Trend, 2)
	assert.Len(t, resp.Comparison, 2)
}

func TestUnknownRouteAndMethod(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/v1/nope", nil).Code)

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/distribution", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestNewRouter_Chain(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("..", "dataset", "testdata", "employment.json"))
	require.NoError(t, err)
	decoded, err := dataset.Decode(raw)
	require.NoError(t, err)
	p, err := dataset.New(decoded, dataset.DefaultLayout())
	require.NoError(t, err)

	m := metrics.New(prometheus.NewRegistry())
	tracker := &recordingTracker{}
	checker := health.NewChecker()

	router, err := NewRouter(NewHandler(p, raw, Defaults{Region: "0", Sector: "TOT"}, tracker, m), checker, RouterOptions{
		AllowOrigins:    []string{"*"},
		RequestTimeout:  5 * time.Second,
		Limiter:         ratelimit.NewMemory(2, time.Minute),
		RateLimitWindow: time.Minute,
		Metrics:         m,
	})
	require.NoError(t, err)

	do := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Origin", "https://dashboard.example")
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := do("/api/v1/quarters/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	requestID := rec.Header().Get(middleware.RequestIDHeader)
	assert.NotEmpty(t, requestID)
	assert.Equal(t, "https://dashboard.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, requestID, tracker.last().RequestID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "GET /api/v1/quarters/latest", "200")))

	assert.Equal(t, http.StatusOK, do("/api/v1/regions").Code)
	assert.Equal(t, http.StatusTooManyRequests, do("/api/v1/regions").Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitedTotal))

	// Health probes bypass the limiter.
	assert.Equal(t, http.StatusOK, do("/health/live").Code)
	assert.Equal(t, http.StatusOK, do("/health/ready").Code)
}
