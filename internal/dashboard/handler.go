// Package dashboard serves the employment dataset and its gender queries
// over HTTP.
//
// Route table:
//
//	GET /api/v1/employment-data   raw JSON-stat document as loaded
//	GET /api/v1/metadata          label, source, update time, dimension sizes
//	GET /api/v1/regions           region categories in position order
//	GET /api/v1/sectors           sector categories
//	GET /api/v1/genders           gender categories
//	GET /api/v1/quarters          quarter categories
//	GET /api/v1/quarters/latest   most recent quarter
//	GET /api/v1/distribution      ?region&sector&quarter
//	GET /api/v1/trend             ?region&sector
//	GET /api/v1/comparison        ?region&quarter
//	GET /api/v1/dashboard         ?region&sector, all three views for the latest quarter
//
// Omitted codes default to the configured region and sector and to the
// latest quarter.
package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/siyabendoezdemir/m323/internal/analytics"
	"github.com/siyabendoezdemir/m323/internal/dataset"
	apperrors "github.com/siyabendoezdemir/m323/pkg/errors"
	"github.com/siyabendoezdemir/m323/pkg/logger"
	"github.com/siyabendoezdemir/m323/pkg/metrics"
)

// Defaults are the codes used when a query parameter is omitted.
type Defaults struct {
	Region string
	Sector string
}

// Handler answers dashboard queries from one Processor.
type Handler struct {
	processor *dataset.Processor
	raw       []byte
	defaults  Defaults
	tracker   analytics.Tracker
	metrics   *metrics.Metrics
}

// NewHandler creates a Handler. raw is served verbatim by the
// employment-data route. tracker and m may be nil.
func NewHandler(p *dataset.Processor, raw []byte, defaults Defaults, tracker analytics.Tracker, m *metrics.Metrics) *Handler {
	if tracker == nil {
		tracker = analytics.Discard{}
	}
	return &Handler{
		processor: p,
		raw:       raw,
		defaults:  defaults,
		tracker:   tracker,
		metrics:   m,
	}
}

// Register mounts the dashboard routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/employment-data", h.EmploymentData)
	mux.HandleFunc("GET /api/v1/metadata", h.Metadata)
	mux.HandleFunc("GET /api/v1/regions", h.categories(dataset.Region))
	mux.HandleFunc("GET /api/v1/sectors", h.categories(dataset.Sector))
	mux.HandleFunc("GET /api/v1/genders", h.categories(dataset.Gender))
	mux.HandleFunc("GET /api/v1/quarters", h.categories(dataset.Quarter))
	mux.HandleFunc("GET /api/v1/quarters/latest", h.LatestQuarter)
	mux.HandleFunc("GET /api/v1/distribution", h.Distribution)
	mux.HandleFunc("GET /api/v1/trend", h.Trend)
	mux.HandleFunc("GET /api/v1/comparison", h.Comparison)
	mux.HandleFunc("GET /api/v1/dashboard", h.Dashboard)
}

func (h *Handler) EmploymentData(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(h.raw); err != nil {
		logger.FromContext(r.Context()).Warn("writing employment data failed", "error", err)
	}
	h.observe(r, analytics.QueryEvent{Type: analytics.QueryRawData}, start, nil)
}

func (h *Handler) Metadata(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, &analytics.QueryEvent{Type: analytics.QueryMetadata}, func() (any, error) {
		return h.processor.Metadata(), nil
	})
}

func (h *Handler) categories(d dataset.Dimension) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.serve(w, r, &analytics.QueryEvent{Type: analytics.QueryCategories}, func() (any, error) {
			return h.processor.Categories(d), nil
		})
	}
}

func (h *Handler) LatestQuarter(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, &analytics.QueryEvent{Type: analytics.QueryLatest}, func() (any, error) {
		return h.latestQuarter()
	})
}

type distributionResponse struct {
	Region  dataset.Category `json:"region"`
	Sector  dataset.Category `json:"sector"`
	Quarter dataset.Category `json:"quarter"`
	dataset.GenderDistribution
}

func (h *Handler) Distribution(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	event := analytics.QueryEvent{
		Type:    analytics.QueryDistribution,
		Region:  h.param(q.Get("region"), h.defaults.Region),
		Sector:  h.param(q.Get("sector"), h.defaults.Sector),
		Quarter: q.Get("quarter"),
	}
	h.serve(w, r, &event, func() (any, error) {
		quarter, err := h.quarterOrLatest(event.Quarter)
		if err != nil {
			return nil, err
		}
		event.Quarter = quarter.Code
		region, sector, err := h.regionAndSector(event.Region, event.Sector)
		if err != nil {
			return nil, err
		}
		dist, err := h.processor.GenderDistribution(region.Code, sector.Code, quarter.Code)
		if err != nil {
			return nil, err
		}
		return distributionResponse{Region: region, Sector: sector, Quarter: quarter, GenderDistribution: dist}, nil
	})
}

type trendResponse struct {
	Region dataset.Category     `json:"region"`
	Sector dataset.Category     `json:"sector"`
	Points []dataset.TrendPoint `json:"points"`
}

func (h *Handler) Trend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	event := analytics.QueryEvent{
		Type:   analytics.QueryTrend,
		Region: h.param(q.Get("region"), h.defaults.Region),
		Sector: h.param(q.Get("sector"), h.defaults.Sector),
	}
	h.serve(w, r, &event, func() (any, error) {
		region, sector, err := h.regionAndSector(event.Region, event.Sector)
		if err != nil {
			return nil, err
		}
		points, err := h.processor.GenderTrend(region.Code, sector.Code)
		if err != nil {
			return nil, err
		}
		return trendResponse{Region: region, Sector: sector, Points: points}, nil
	})
}

type comparisonResponse struct {
	Region  dataset.Category      `json:"region"`
	Quarter dataset.Category      `json:"quarter"`
	Sectors []dataset.SectorShare `json:"sectors"`
}

func (h *Handler) Comparison(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	event := analytics.QueryEvent{
		Type:    analytics.QueryComparison,
		Region:  h.param(q.Get("region"), h.defaults.Region),
		Quarter: q.Get("quarter"),
	}
	h.serve(w, r, &event, func() (any, error) {
		quarter, err := h.quarterOrLatest(event.Quarter)
		if err != nil {
			return nil, err
		}
		event.Quarter = quarter.Code
		region, err := h.processor.Category(dataset.Region, event.Region)
		if err != nil {
			return nil, err
		}
		shares, err := h.processor.SectorComparison(region.Code, quarter.Code)
		if err != nil {
			return nil, err
		}
		return comparisonResponse{Region: region, Quarter: quarter, Sectors: shares}, nil
	})
}

type dashboardResponse struct {
	Region        dataset.Category           `json:"region"`
	Sector        dataset.Category           `json:"sector"`
	LatestQuarter dataset.Category           `json:"latestQuarter"`
	Distribution  dataset.GenderDistribution `json:"distribution"`
	Trend         []dataset.TrendPoint       `json:"trend"`
	Comparison    []dataset.SectorShare      `json:"comparison"`
}

// Dashboard returns everything the dashboard page shows for one region and
// sector in a single response.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	event := analytics.QueryEvent{
		Type:   analytics.QueryDashboard,
		Region: h.param(q.Get("region"), h.defaults.Region),
		Sector: h.param(q.Get("sector"), h.defaults.Sector),
	}
	h.serve(w, r, &event, func() (any, error) {
		region, sector, err := h.regionAndSector(event.Region, event.Sector)
		if err != nil {
			return nil, err
		}
		latest, err := h.latestQuarter()
		if err != nil {
			return nil, err
		}
		event.Quarter = latest.Code
		resp := dashboardResponse{Region: region, Sector: sector, LatestQuarter: latest}
		if resp.Distribution, err = h.processor.GenderDistribution(region.Code, sector.Code, latest.Code); err != nil {
			return nil, err
		}
		if resp.Trend, err = h.processor.GenderTrend(region.Code, sector.Code); err != nil {
			return nil, err
		}
		if resp.Comparison, err = h.processor.SectorComparison(region.Code, latest.Code); err != nil {
			return nil, err
		}
		return resp, nil
	})
}

func (h *Handler) param(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func (h *Handler) regionAndSector(regionCode, sectorCode string) (dataset.Category, dataset.Category, error) {
	region, err := h.processor.Category(dataset.Region, regionCode)
	if err != nil {
		return dataset.Category{}, dataset.Category{}, err
	}
	sector, err := h.processor.Category(dataset.Sector, sectorCode)
	if err != nil {
		return dataset.Category{}, dataset.Category{}, err
	}
	return region, sector, nil
}

func (h *Handler) latestQuarter() (dataset.Category, error) {
	return h.processor.Category(dataset.Quarter, h.processor.LatestQuarter())
}

func (h *Handler) quarterOrLatest(code string) (dataset.Category, error) {
	if code == "" {
		return h.latestQuarter()
	}
	return h.processor.Category(dataset.Quarter, code)
}

// serve evaluates fn, writes its result or error as JSON and records the
// query. fn may fill in event fields it resolves, such as a defaulted quarter.
func (h *Handler) serve(w http.ResponseWriter, r *http.Request, event *analytics.QueryEvent, fn func() (any, error)) {
	start := time.Now()
	result, err := fn()
	if err != nil {
		err = classify(err)
		if apperrors.HTTPStatusCode(err) >= http.StatusInternalServerError {
			logger.FromContext(r.Context()).Error("dashboard query failed", "type", event.Type, "error", err)
		}
		apperrors.WriteJSON(w, err)
		h.observe(r, *event, start, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		logger.FromContext(r.Context()).Warn("writing response failed", "error", err)
	}
	h.observe(r, *event, start, nil)
}

// classify turns query errors into client errors where the caller is at
// fault.
func classify(err error) error {
	if errors.Is(err, dataset.ErrUnknownCategory) {
		return apperrors.InvalidInput("%s", err.Error())
	}
	return err
}

func (h *Handler) observe(r *http.Request, event analytics.QueryEvent, start time.Time, err error) {
	elapsed := time.Since(start)
	event.Status = analytics.StatusOK
	if err != nil {
		event.Status = analytics.StatusError
		if apperrors.HTTPStatusCode(err) < http.StatusInternalServerError {
			event.Status = analytics.StatusInvalid
		}
		event.Error = apperrors.PublicMessage(err)
	}
	event.LatencyMs = float64(elapsed.Microseconds()) / 1000
	event.Timestamp = start.UTC()
	event.RequestID = logger.RequestID(r.Context())

	if h.metrics != nil {
		h.metrics.QueriesTotal.WithLabelValues(string(event.Type), string(event.Status)).Inc()
		h.metrics.QueryLatency.WithLabelValues(string(event.Type)).Observe(elapsed.Seconds())
	}
	h.tracker.Track(event)
}
