package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Write operations recorded by MetricWrites.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpSkip   = "skip"
	OpError  = "error"
)

// Pass results recorded by Passes.
const (
	ResultSuccess     = "success"
	ResultUnavailable = "unavailable"
	ResultError       = "error"
	ResultCanceled    = "canceled"
)

// Aggregator instruments the metric aggregation job.
type Aggregator struct {
	Passes          *prometheus.CounterVec
	PassDuration    prometheus.Histogram
	ProjectFailures prometheus.Counter
	MetricWrites    *prometheus.CounterVec
	Retries         prometheus.Counter
}

// NewAggregator registers the aggregator collectors on reg.
func NewAggregator(reg prometheus.Registerer) *Aggregator {
	factory := promauto.With(reg)
	return &Aggregator{
		Passes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aggregator_passes_total",
				Help: "Total number of aggregation passes by result",
			},
			[]string{"result"},
		),
		PassDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "aggregator_pass_duration_seconds",
				Help:    "Duration of completed aggregation passes in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
		ProjectFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "aggregator_project_failures_total",
				Help: "Total number of projects whose aggregation failed within a pass",
			},
		),
		MetricWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aggregator_metric_writes_total",
				Help: "Metric row writes by metric type and operation",
			},
			[]string{"metric_type", "op"},
		),
		Retries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "aggregator_retries_total",
				Help: "Total number of aggregation pass retries",
			},
		),
	}
}
