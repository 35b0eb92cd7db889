package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MetricsFilter represents metrics query filters.
type MetricsFilter struct {
	ProjectID  uuid.UUID
	MetricType MetricType
	Period     Period
	From       time.Time
	To         time.Time
}

// MetricsResponse is returned to clients for metrics queries.
type MetricsResponse struct {
	Meta MetricsMeta       `json:"meta"`
	Data []MetricDataPoint `json:"data"`
}

// MetricsMeta contains metadata about the metrics query.
type MetricsMeta struct {
	ProjectID string                 `json:"project_id"`
	Period    MetricsPeriod          `json:"period"`
	Filters   map[string]interface{} `json:"filters,omitempty"`
}

// MetricsPeriod captures the time window.
type MetricsPeriod struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// MetricDataPoint is a single stored metric row as exposed over HTTP.
type MetricDataPoint struct {
	MetricType  MetricType      `json:"metric_type"`
	Period      Period          `json:"period"`
	PeriodStart string          `json:"period_start"`
	Value       float64         `json:"value"`
	Dimensions  json.RawMessage `json:"dimensions,omitempty"`
	UpdatedAt   string          `json:"updated_at"`
}
