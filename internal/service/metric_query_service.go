package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"

	"telemetry-metrics-service/internal/model"
	"telemetry-metrics-service/internal/repository"
)

const defaultQueryRange = 30 * 24 * time.Hour

// ErrUnauthorized is returned when a project id and API key do not match.
var ErrUnauthorized = errors.New("unauthorized")

// ValidationError represents user input issues.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type MetricQueryService interface {
	GetMetrics(ctx context.Context, filter model.MetricsFilter) (model.MetricsResponse, error)
	GetEvents(ctx context.Context, query model.EventQuery) ([]model.Event, error)
	GetDevices(ctx context.Context, query model.DeviceQuery) ([]model.Device, error)
	Authenticate(ctx context.Context, projectID uuid.UUID, apiKey string) (model.Project, error)
}

// metricQueryService serves stored metric rows and raw telemetry pages to the
// analytics API.
type metricQueryService struct {
	repo  repository.TelemetryRepository
	clock quartz.Clock
}

// NewMetricQueryService constructs a MetricQueryService.
func NewMetricQueryService(repo repository.TelemetryRepository, clock quartz.Clock) MetricQueryService {
	return &metricQueryService{repo: repo, clock: clock}
}

// GetMetrics validates filters, sets defaults, and reads the matching rows.
func (s *metricQueryService) GetMetrics(ctx context.Context, filter model.MetricsFilter) (model.MetricsResponse, error) {
	if filter.MetricType != "" && !filter.MetricType.Valid() {
		return model.MetricsResponse{}, &ValidationError{Message: "unsupported metric_type"}
	}

	if filter.Period != "" && !filter.Period.Valid() {
		return model.MetricsResponse{}, &ValidationError{Message: "unsupported period"}
	}

	now := s.clock.Now().UTC()
	if filter.To.IsZero() {
		filter.To = now
	} else {
		filter.To = filter.To.UTC()
	}

	if filter.From.IsZero() {
		filter.From = filter.To.Add(-defaultQueryRange)
	} else {
		filter.From = filter.From.UTC()
	}

	if filter.From.After(filter.To) {
		return model.MetricsResponse{}, &ValidationError{Message: "from must be before to"}
	}

	rows, err := s.repo.ListMetrics(ctx, filter)
	if err != nil {
		return model.MetricsResponse{}, fmt.Errorf("list metrics: %w", err)
	}

	resp := model.MetricsResponse{
		Meta: model.MetricsMeta{
			ProjectID: filter.ProjectID.String(),
			Period: model.MetricsPeriod{
				Start: filter.From.Format(time.RFC3339),
				End:   filter.To.Format(time.RFC3339),
			},
		},
		Data: make([]model.MetricDataPoint, 0, len(rows)),
	}

	filters := map[string]any{}
	if filter.MetricType != "" {
		filters["metric_type"] = filter.MetricType
	}
	if filter.Period != "" {
		filters["period"] = filter.Period
	}
	if len(filters) > 0 {
		resp.Meta.Filters = filters
	}

	for _, row := range rows {
		point := model.MetricDataPoint{
			MetricType:  row.MetricType,
			Period:      row.Period,
			PeriodStart: row.PeriodStart.UTC().Format(time.DateOnly),
			Value:       row.Value,
			UpdatedAt:   row.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if row.Dimensions != nil && json.Valid([]byte(*row.Dimensions)) {
			point.Dimensions = json.RawMessage(*row.Dimensions)
		}
		resp.Data = append(resp.Data, point)
	}

	return resp, nil
}

// GetEvents returns one page of raw events. The limit defaults to
// model.DefaultPageLimit and is capped at model.MaxPageLimit.
func (s *metricQueryService) GetEvents(ctx context.Context, query model.EventQuery) ([]model.Event, error) {
	limit, err := pageLimit(query.Limit, query.Offset)
	if err != nil {
		return nil, err
	}
	query.Limit = limit

	if !query.From.IsZero() && !query.To.IsZero() && query.From.After(query.To) {
		return nil, &ValidationError{Message: "from must be before to"}
	}

	events, err := s.repo.SearchEvents(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}
	if events == nil {
		events = []model.Event{}
	}
	return events, nil
}

// GetDevices returns one page of devices with the same limit rules as GetEvents.
func (s *metricQueryService) GetDevices(ctx context.Context, query model.DeviceQuery) ([]model.Device, error) {
	limit, err := pageLimit(query.Limit, query.Offset)
	if err != nil {
		return nil, err
	}
	query.Limit = limit

	devices, err := s.repo.ListDevices(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	if devices == nil {
		devices = []model.Device{}
	}
	return devices, nil
}

func pageLimit(limit, offset int) (int, error) {
	if offset < 0 {
		return 0, &ValidationError{Message: "offset must not be negative"}
	}
	switch {
	case limit <= 0:
		return model.DefaultPageLimit, nil
	case limit > model.MaxPageLimit:
		return model.MaxPageLimit, nil
	}
	return limit, nil
}

// Authenticate returns the project when apiKey matches its key.
func (s *metricQueryService) Authenticate(ctx context.Context, projectID uuid.UUID, apiKey string) (model.Project, error) {
	if apiKey == "" {
		return model.Project{}, ErrUnauthorized
	}

	project, err := s.repo.GetProject(ctx, projectID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Project{}, ErrUnauthorized
	}
	if err != nil {
		return model.Project{}, fmt.Errorf("get project: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(project.APIKey), []byte(apiKey)) != 1 {
		return model.Project{}, ErrUnauthorized
	}
	return project, nil
}
