package analytics

import "time"

// QueryType names the dashboard query an event describes.
type QueryType string

const (
	QueryDistribution QueryType = "distribution"
	QueryTrend        QueryType = "trend"
	QueryComparison   QueryType = "comparison"
	QueryDashboard    QueryType = "dashboard"
	QueryLatest       QueryType = "latest_quarter"
	QueryCategories   QueryType = "categories"
	QueryMetadata     QueryType = "metadata"
	QueryRawData      QueryType = "raw_data"
)

// QueryStatus is the outcome of a query as seen by the client.
type QueryStatus string

const (
	StatusOK      QueryStatus = "ok"
	StatusInvalid QueryStatus = "invalid"
	StatusError   QueryStatus = "error"
)

// QueryEvent records one dashboard query. Codes that do not apply to the
// query type are left empty.
type QueryEvent struct {
	Type      QueryType   `json:"type"`
	Region    string      `json:"region,omitempty"`
	Sector    string      `json:"sector,omitempty"`
	Quarter   string      `json:"quarter,omitempty"`
	Status    QueryStatus `json:"status"`
	LatencyMs float64     `json:"latency_ms"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// Tracker accepts query events without blocking the caller.
type Tracker interface {
	Track(event QueryEvent)
}

// Discard is a Tracker that drops every event.
type Discard struct{}

func (Discard) Track(QueryEvent) {}
