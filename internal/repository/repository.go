package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"telemetry-metrics-service/internal/model"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateMetric is returned by InsertMetric when a row with the same
	// (project, metric type, period, period start) key already exists.
	ErrDuplicateMetric = errors.New("duplicate metric")
)

// TelemetryRepository is the data store surface used by the aggregator and
// the analytics query endpoints.
type TelemetryRepository interface {
	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	// ListProjects returns every project.
	ListProjects(ctx context.Context) ([]model.Project, error)

	// GetProject returns a single project or ErrNotFound.
	GetProject(ctx context.Context, id uuid.UUID) (model.Project, error)

	// ListEvents returns the events of a project inside the filter window,
	// joined with their device platform.
	ListEvents(ctx context.Context, filter model.EventFilter) ([]model.Event, error)

	// ListCompletedSessions returns sessions of the project's devices that
	// started on the UTC date of day and have both an end time and a duration.
	ListCompletedSessions(ctx context.Context, projectID uuid.UUID, day time.Time) ([]model.Session, error)

	// FindMetric looks a metric row up by its key, comparing only the calendar
	// date of PeriodStart. Returns ErrNotFound when absent.
	FindMetric(ctx context.Context, key model.MetricKey) (model.Metric, error)

	// InsertMetric stores a new metric row. Returns ErrDuplicateMetric when the key is taken.
	InsertMetric(ctx context.Context, metric model.Metric) error

	// UpdateMetric overwrites value, dimensions and updated_at of an existing row.
	UpdateMetric(ctx context.Context, metric model.Metric) error

	// ListMetrics returns stored metric rows for the analytics surface.
	ListMetrics(ctx context.Context, filter model.MetricsFilter) ([]model.Metric, error)

	// SearchEvents returns one page of a project's events, newest first, with
	// the device platform joined.
	SearchEvents(ctx context.Context, query model.EventQuery) ([]model.Event, error)

	// ListDevices returns one page of a project's devices, most recently seen first.
	ListDevices(ctx context.Context, query model.DeviceQuery) ([]model.Device, error)
}
