package mockrepository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"telemetry-metrics-service/internal/model"
	"telemetry-metrics-service/internal/repository"
)

type Repository struct {
	mock.Mock
}

// Interface compliance check
var _ repository.TelemetryRepository = &Repository{}

func (m *Repository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *Repository) ListProjects(ctx context.Context) ([]model.Project, error) {
	args := m.Called(ctx)
	projects, _ := args.Get(0).([]model.Project)
	return projects, args.Error(1)
}

func (m *Repository) GetProject(ctx context.Context, id uuid.UUID) (model.Project, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Project), args.Error(1)
}

func (m *Repository) ListEvents(ctx context.Context, filter model.EventFilter) ([]model.Event, error) {
	args := m.Called(ctx, filter)
	events, _ := args.Get(0).([]model.Event)
	return events, args.Error(1)
}

func (m *Repository) ListCompletedSessions(ctx context.Context, projectID uuid.UUID, day time.Time) ([]model.Session, error) {
	args := m.Called(ctx, projectID, day)
	sessions, _ := args.Get(0).([]model.Session)
	return sessions, args.Error(1)
}

func (m *Repository) FindMetric(ctx context.Context, key model.MetricKey) (model.Metric, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(model.Metric), args.Error(1)
}

func (m *Repository) InsertMetric(ctx context.Context, metric model.Metric) error {
	args := m.Called(ctx, metric)
	return args.Error(0)
}

func (m *Repository) UpdateMetric(ctx context.Context, metric model.Metric) error {
	args := m.Called(ctx, metric)
	return args.Error(0)
}

func (m *Repository) ListMetrics(ctx context.Context, filter model.MetricsFilter) ([]model.Metric, error) {
	args := m.Called(ctx, filter)
	metrics, _ := args.Get(0).([]model.Metric)
	return metrics, args.Error(1)
}

func (m *Repository) SearchEvents(ctx context.Context, query model.EventQuery) ([]model.Event, error) {
	args := m.Called(ctx, query)
	events, _ := args.Get(0).([]model.Event)
	return events, args.Error(1)
}

func (m *Repository) ListDevices(ctx context.Context, query model.DeviceQuery) ([]model.Device, error) {
	args := m.Called(ctx, query)
	devices, _ := args.Get(0).([]model.Device)
	return devices, args.Error(1)
}
