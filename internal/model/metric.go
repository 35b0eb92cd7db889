package model

import (
	"time"

	"github.com/google/uuid"
)

// MetricType names a pre-aggregated metric.
type MetricType string

const (
	MetricDAU                MetricType = "dau"
	MetricMAU                MetricType = "mau"
	MetricNewUsers           MetricType = "new_users"
	MetricSessionCount       MetricType = "session_count"
	MetricSessionLength      MetricType = "session_length"
	MetricAvgSessionDuration MetricType = "avg_session_duration"
	MetricEventCount         MetricType = "event_count"
	MetricRetentionRate      MetricType = "retention_rate"
)

// Valid reports whether m is a known metric type.
func (m MetricType) Valid() bool {
	switch m {
	case MetricDAU, MetricMAU, MetricNewUsers, MetricSessionCount, MetricSessionLength,
		MetricAvgSessionDuration, MetricEventCount, MetricRetentionRate:
		return true
	default:
		return false
	}
}

// Period is the granularity a metric row is aggregated over.
type Period string

const (
	PeriodHourly  Period = "hourly"
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
	PeriodTotal   Period = "total"
)

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	switch p {
	case PeriodHourly, PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodYearly, PeriodTotal:
		return true
	default:
		return false
	}
}

// MetricKey identifies a metric row. Only the calendar date of PeriodStart is significant.
type MetricKey struct {
	ProjectID   uuid.UUID
	MetricType  MetricType
	Period      Period
	PeriodStart time.Time
}

// Metric is a pre-aggregated rollup value. Dimensions optionally holds a
// serialized JSON breakdown, e.g. PlatformDimensions on the dau row.
type Metric struct {
	ID          uuid.UUID
	ProjectID   uuid.UUID
	MetricType  MetricType
	Period      Period
	PeriodStart time.Time
	Value       float64
	Dimensions  *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Key returns the four-part identity of the row.
func (m Metric) Key() MetricKey {
	return MetricKey{
		ProjectID:   m.ProjectID,
		MetricType:  m.MetricType,
		Period:      m.Period,
		PeriodStart: m.PeriodStart,
	}
}

// PlatformDimensions is the breakdown attached to the daily dau row.
type PlatformDimensions struct {
	Platforms map[string]int64 `json:"platforms"`
}

// SameDate reports whether a and b fall on the same UTC calendar date.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
