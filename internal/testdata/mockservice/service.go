package mockservice

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"telemetry-metrics-service/internal/model"
	"telemetry-metrics-service/internal/service"
)

type Service struct {
	mock.Mock
}

var _ service.MetricQueryService = &Service{}

func (m *Service) GetMetrics(ctx context.Context, filter model.MetricsFilter) (model.MetricsResponse, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(model.MetricsResponse), args.Error(1)
}

func (m *Service) GetEvents(ctx context.Context, query model.EventQuery) ([]model.Event, error) {
	args := m.Called(ctx, query)
	events, _ := args.Get(0).([]model.Event)
	return events, args.Error(1)
}

func (m *Service) GetDevices(ctx context.Context, query model.DeviceQuery) ([]model.Device, error) {
	args := m.Called(ctx, query)
	devices, _ := args.Get(0).([]model.Device)
	return devices, args.Error(1)
}

func (m *Service) Authenticate(ctx context.Context, projectID uuid.UUID, apiKey string) (model.Project, error) {
	args := m.Called(ctx, projectID, apiKey)
	return args.Get(0).(model.Project), args.Error(1)
}

// Pinger satisfies controller.Pinger.
type Pinger struct {
	mock.Mock
}

func (m *Pinger) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
