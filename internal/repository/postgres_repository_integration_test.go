//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"telemetry-metrics-service/internal/db"
	"telemetry-metrics-service/internal/model"
)

type PostgresRepositoryIntegrationSuite struct {
	suite.Suite

	container testcontainers.Container
	pool      *pgxpool.Pool
	repo      TelemetryRepository
	project   model.Project
}

func TestPostgresRepositoryIntegration(t *testing.T) {
	suite.Run(t, new(PostgresRepositoryIntegrationSuite))
}

func (s *PostgresRepositoryIntegrationSuite) SetupSuite() {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "telemetry",
				"POSTGRES_PASSWORD": "telemetry",
				"POSTGRES_DB":       "telemetry",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	s.Require().NoError(err)
	s.container = container

	host, err := container.Host(ctx)
	s.Require().NoError(err)
	port, err := container.MappedPort(ctx, "5432")
	s.Require().NoError(err)

	dsn := fmt.Sprintf("postgres://telemetry:telemetry@%s:%s/telemetry?sslmode=disable", host, port.Port())
	s.pool, err = pgxpool.New(ctx, dsn)
	s.Require().NoError(err)
	s.Require().NoError(db.RunMigrations(ctx, s.pool))

	s.repo = NewPostgresRepository(s.pool)
}

func (s *PostgresRepositoryIntegrationSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *PostgresRepositoryIntegrationSuite) SetupTest() {
	ctx := context.Background()
	_, err := s.pool.Exec(ctx, `TRUNCATE metrics, sessions, events, devices, projects CASCADE`)
	s.Require().NoError(err)

	s.project = model.Project{ID: uuid.New(), Name: "game", OwnerID: uuid.New(), APIKey: "key"}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO projects (id, name, owner_id, api_key) VALUES ($1, $2, $3, $4)`,
		s.project.ID, s.project.Name, s.project.OwnerID, s.project.APIKey)
	s.Require().NoError(err)
}

func (s *PostgresRepositoryIntegrationSuite) TestMetricUniqueKey() {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	metric := model.Metric{
		ID:          uuid.New(),
		ProjectID:   s.project.ID,
		MetricType:  model.MetricDAU,
		Period:      model.PeriodDaily,
		PeriodStart: now,
		Value:       3,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.Require().NoError(s.repo.InsertMetric(ctx, metric))

	duplicate := metric
	duplicate.ID = uuid.New()
	duplicate.PeriodStart = now.Add(5 * time.Hour)
	s.ErrorIs(s.repo.InsertMetric(ctx, duplicate), ErrDuplicateMetric)

	found, err := s.repo.FindMetric(ctx, model.MetricKey{
		ProjectID:   s.project.ID,
		MetricType:  model.MetricDAU,
		Period:      model.PeriodDaily,
		PeriodStart: now.Add(13 * time.Hour),
	})
	s.Require().NoError(err)
	s.Equal(metric.ID, found.ID)

	found.Value = 7
	found.UpdatedAt = now.Add(time.Hour)
	s.Require().NoError(s.repo.UpdateMetric(ctx, found))

	metrics, err := s.repo.ListMetrics(ctx, model.MetricsFilter{ProjectID: s.project.ID})
	s.Require().NoError(err)
	s.Require().Len(metrics, 1)
	s.Equal(7.0, metrics[0].Value)
}

func (s *PostgresRepositoryIntegrationSuite) TestEventsAndSessions() {
	ctx := context.Background()
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	deviceID := uuid.New()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO devices (id, project_id, device_id, platform) VALUES ($1, $2, 'dev-1', 'iOS')`,
		deviceID, s.project.ID)
	s.Require().NoError(err)

	_, err = s.pool.Exec(ctx, `
		INSERT INTO events (id, project_id, device_id, event_type, event_name, ts) VALUES
		($1, $3, $4, 'custom', 'a', $5),
		($2, $3, NULL, 'custom', 'b', $5)`,
		uuid.New(), uuid.New(), s.project.ID, deviceID, day.Add(time.Hour))
	s.Require().NoError(err)

	_, err = s.pool.Exec(ctx, `
		INSERT INTO sessions (id, device_id, session_id, start_time, end_time, duration) VALUES
		($1, $3, 's1', $4, $5, 600),
		($2, $3, 's2', $4, NULL, NULL)`,
		uuid.New(), uuid.New(), deviceID, day.Add(2*time.Hour), day.Add(2*time.Hour+10*time.Minute))
	s.Require().NoError(err)

	window := model.DayOf(day)
	all, err := s.repo.ListEvents(ctx, model.EventFilter{ProjectID: s.project.ID, Window: window})
	s.Require().NoError(err)
	s.Len(all, 2)

	withDevice, err := s.repo.ListEvents(ctx, model.EventFilter{ProjectID: s.project.ID, Window: window, DeviceOnly: true})
	s.Require().NoError(err)
	s.Require().Len(withDevice, 1)
	s.Equal("iOS", withDevice[0].Platform)

	sessions, err := s.repo.ListCompletedSessions(ctx, s.project.ID, day)
	s.Require().NoError(err)
	s.Require().Len(sessions, 1)
	s.Equal(int64(600), *sessions[0].Duration)

	bySDKDevice, err := s.repo.SearchEvents(ctx, model.EventQuery{ProjectID: s.project.ID, DeviceID: "dev-1", Limit: 10})
	s.Require().NoError(err)
	s.Require().Len(bySDKDevice, 1)
	s.Equal("a", bySDKDevice[0].EventName)

	unknownDevice, err := s.repo.SearchEvents(ctx, model.EventQuery{ProjectID: s.project.ID, DeviceID: "dev-404", Limit: 10})
	s.Require().NoError(err)
	s.Empty(unknownDevice)

	firstPage, err := s.repo.SearchEvents(ctx, model.EventQuery{ProjectID: s.project.ID, Limit: 1})
	s.Require().NoError(err)
	s.Len(firstPage, 1)

	devices, err := s.repo.ListDevices(ctx, model.DeviceQuery{ProjectID: s.project.ID, Platform: "iOS", Limit: 10})
	s.Require().NoError(err)
	s.Require().Len(devices, 1)
	s.Equal("dev-1", devices[0].DeviceID)
}
