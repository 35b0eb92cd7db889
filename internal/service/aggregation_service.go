package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telemetry-metrics-service/internal/metrics"
	"telemetry-metrics-service/internal/model"
	"telemetry-metrics-service/internal/repository"
)

// ErrStoreUnavailable is returned by RunPass when the store fails its ping.
var ErrStoreUnavailable = errors.New("store unavailable")

type AggregationService interface {
	// RunPass aggregates every project once. Per-project failures are logged
	// and do not fail the pass.
	RunPass(ctx context.Context) error
	// AggregateProject computes and upserts the metrics of one project for
	// the UTC day and month containing now.
	AggregateProject(ctx context.Context, projectID uuid.UUID, now time.Time) error
}

type aggregationService struct {
	repo    repository.TelemetryRepository
	clock   quartz.Clock
	logger  zerolog.Logger
	metrics *metrics.Aggregator
}

// NewAggregationService constructs an AggregationService.
func NewAggregationService(repo repository.TelemetryRepository, clock quartz.Clock, logger zerolog.Logger, m *metrics.Aggregator) AggregationService {
	return &aggregationService{
		repo:    repo,
		clock:   clock,
		logger:  logger.With().Str("component", "aggregation").Logger(),
		metrics: m,
	}
}

func (s *aggregationService) RunPass(ctx context.Context) error {
	started := s.clock.Now()
	now := started.UTC()

	s.logger.Info().Time("anchor", now).Msg("aggregation pass started")

	if err := s.repo.Ping(ctx); err != nil {
		s.metrics.Passes.WithLabelValues(metrics.ResultUnavailable).Inc()
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	projects, err := s.repo.ListProjects(ctx)
	if err != nil {
		s.metrics.Passes.WithLabelValues(metrics.ResultError).Inc()
		return fmt.Errorf("list projects: %w", err)
	}

	failures := 0
	for _, project := range projects {
		if err := ctx.Err(); err != nil {
			s.metrics.Passes.WithLabelValues(metrics.ResultCanceled).Inc()
			return err
		}

		if err := s.AggregateProject(ctx, project.ID, now); err != nil {
			failures++
			s.metrics.ProjectFailures.Inc()
			s.logger.Error().
				Err(err).
				Stringer("project_id", project.ID).
				Msg("project aggregation failed")
		}
	}

	elapsed := s.clock.Since(started)
	s.metrics.Passes.WithLabelValues(metrics.ResultSuccess).Inc()
	s.metrics.PassDuration.Observe(elapsed.Seconds())

	s.logger.Info().
		Int("projects", len(projects)).
		Int("failures", failures).
		Dur("duration", elapsed).
		Msg("aggregation pass finished")

	return nil
}

func (s *aggregationService) AggregateProject(ctx context.Context, projectID uuid.UUID, now time.Time) error {
	logger := s.logger.With().Stringer("project_id", projectID).Logger()
	day := DayWindow(now)
	month := MonthWindow(now)

	var errs []error
	fail := func(metricType model.MetricType, err error) {
		s.metrics.MetricWrites.WithLabelValues(string(metricType), metrics.OpError).Inc()
		logger.Error().Err(err).Str("metric_type", string(metricType)).Msg("metric aggregation failed")
		errs = append(errs, fmt.Errorf("%s: %w", metricType, err))
	}

	if err := s.aggregateActiveDevices(ctx, projectID, model.MetricDAU, model.PeriodDaily, day, now); err != nil {
		fail(model.MetricDAU, err)
	}

	if err := s.aggregateActiveDevices(ctx, projectID, model.MetricMAU, model.PeriodMonthly, month, now); err != nil {
		fail(model.MetricMAU, err)
	}

	sessions, err := s.repo.ListCompletedSessions(ctx, projectID, day.Start)
	if err != nil {
		fail(model.MetricSessionCount, err)
		fail(model.MetricAvgSessionDuration, err)
	} else {
		summary := SessionStats(sessions)
		if summary.Count.Empty {
			s.skip(logger, model.MetricSessionCount, "no completed sessions")
			s.skip(logger, model.MetricAvgSessionDuration, "no completed sessions")
		} else {
			key := model.MetricKey{ProjectID: projectID, Period: model.PeriodDaily, PeriodStart: day.Start}

			key.MetricType = model.MetricSessionCount
			if err := s.upsertMetric(ctx, key, summary.Count.Value, now); err != nil {
				fail(model.MetricSessionCount, err)
			}

			key.MetricType = model.MetricAvgSessionDuration
			if err := s.upsertMetric(ctx, key, summary.AvgDuration.Value, now); err != nil {
				fail(model.MetricAvgSessionDuration, err)
			}
		}
	}

	if err := s.attachPlatformDimensions(ctx, logger, projectID, day, now); err != nil {
		fail(model.MetricDAU, fmt.Errorf("dimensions: %w", err))
	}

	return errors.Join(errs...)
}

func (s *aggregationService) aggregateActiveDevices(
	ctx context.Context,
	projectID uuid.UUID,
	metricType model.MetricType,
	period model.Period,
	window model.Window,
	now time.Time,
) error {
	events, err := s.repo.ListEvents(ctx, model.EventFilter{
		ProjectID:  projectID,
		Window:     window,
		DeviceOnly: true,
	})
	if err != nil {
		return err
	}

	key := model.MetricKey{
		ProjectID:   projectID,
		MetricType:  metricType,
		Period:      period,
		PeriodStart: window.Start,
	}
	return s.upsertMetric(ctx, key, CountDistinctDevices(events).Value, now)
}

// attachPlatformDimensions overwrites the dimensions of today's dau row.
// The row is left untouched when no event carries a platform.
func (s *aggregationService) attachPlatformDimensions(
	ctx context.Context,
	logger zerolog.Logger,
	projectID uuid.UUID,
	day model.Window,
	now time.Time,
) error {
	events, err := s.repo.ListEvents(ctx, model.EventFilter{ProjectID: projectID, Window: day})
	if err != nil {
		return err
	}

	dims, ok := PlatformBreakdown(events)
	if !ok {
		logger.Debug().Msg("no platform breakdown for today")
		return nil
	}

	payload, err := json.Marshal(dims)
	if err != nil {
		return fmt.Errorf("encode dimensions: %w", err)
	}

	row, err := s.repo.FindMetric(ctx, model.MetricKey{
		ProjectID:   projectID,
		MetricType:  model.MetricDAU,
		Period:      model.PeriodDaily,
		PeriodStart: day.Start,
	})
	if errors.Is(err, repository.ErrNotFound) {
		logger.Warn().Msg("dau row missing, platform dimensions skipped")
		return nil
	}
	if err != nil {
		return err
	}

	encoded := string(payload)
	row.Dimensions = &encoded
	row.UpdatedAt = now
	if err := s.repo.UpdateMetric(ctx, row); err != nil {
		return err
	}

	s.metrics.MetricWrites.WithLabelValues(string(model.MetricDAU), metrics.OpUpdate).Inc()
	return nil
}

// upsertMetric writes value under key. A row inserted concurrently between
// the lookup and the insert is updated instead.
func (s *aggregationService) upsertMetric(ctx context.Context, key model.MetricKey, value float64, now time.Time) error {
	existing, err := s.repo.FindMetric(ctx, key)
	switch {
	case err == nil:
		return s.updateValue(ctx, existing, value, now)
	case !errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("find metric: %w", err)
	}

	metric := model.Metric{
		ID:          uuid.New(),
		ProjectID:   key.ProjectID,
		MetricType:  key.MetricType,
		Period:      key.Period,
		PeriodStart: key.PeriodStart,
		Value:       value,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.repo.InsertMetric(ctx, metric)
	if errors.Is(err, repository.ErrDuplicateMetric) {
		existing, err = s.repo.FindMetric(ctx, key)
		if err != nil {
			return fmt.Errorf("find metric after duplicate insert: %w", err)
		}
		return s.updateValue(ctx, existing, value, now)
	}
	if err != nil {
		return fmt.Errorf("insert metric: %w", err)
	}

	s.metrics.MetricWrites.WithLabelValues(string(key.MetricType), metrics.OpInsert).Inc()
	return nil
}

func (s *aggregationService) updateValue(ctx context.Context, metric model.Metric, value float64, now time.Time) error {
	metric.Value = value
	metric.UpdatedAt = now
	if err := s.repo.UpdateMetric(ctx, metric); err != nil {
		return fmt.Errorf("update metric: %w", err)
	}
	s.metrics.MetricWrites.WithLabelValues(string(metric.MetricType), metrics.OpUpdate).Inc()
	return nil
}

func (s *aggregationService) skip(logger zerolog.Logger, metricType model.MetricType, reason string) {
	s.metrics.MetricWrites.WithLabelValues(string(metricType), metrics.OpSkip).Inc()
	logger.Debug().Str("metric_type", string(metricType)).Str("reason", reason).Msg("metric skipped")
}
