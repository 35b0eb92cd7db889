package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"telemetry-metrics-service/internal/model"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

type postgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a TelemetryRepository backed by PostgreSQL.
func NewPostgresRepository(pool *pgxpool.Pool) TelemetryRepository {
	return &postgresRepository{pool: pool}
}

const (
	listProjectsQuery = `
	SELECT id, name, owner_id, api_key, created_at, updated_at
	FROM projects
	ORDER BY created_at, id
`

	getProjectQuery = `
	SELECT id, name, owner_id, api_key, created_at, updated_at
	FROM projects
	WHERE id = $1
`

	listEventsQuery = `
	SELECT e.id, e.project_id, e.device_id, e.event_type, e.event_name,
	       COALESCE(e.parameters::text, ''), e.ts, COALESCE(d.platform, '')
	FROM events e
	LEFT JOIN devices d ON d.id = e.device_id
	WHERE e.project_id = $1
	  AND e.ts >= $2
	  AND e.ts <  $3
`

	listDeviceEventsQuery = listEventsQuery + `	  AND e.device_id IS NOT NULL
`

	listCompletedSessionsQuery = `
	SELECT s.id, s.device_id, s.session_id, s.start_time, s.end_time, s.duration
	FROM sessions s
	JOIN devices d ON d.id = s.device_id
	WHERE d.project_id = $1
	  AND s.start_time >= $2
	  AND s.start_time <  $3
	  AND s.end_time IS NOT NULL
	  AND s.duration IS NOT NULL
`

	findMetricQuery = `
	SELECT id, project_id, metric_type, period, period_start, value, dimensions::text, created_at, updated_at
	FROM metrics
	WHERE project_id = $1
	  AND metric_type = $2
	  AND period = $3
	  AND period_start = $4::date
	LIMIT 1
`

	insertMetricQuery = `
	INSERT INTO metrics (id, project_id, metric_type, period, period_start, value, dimensions, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9)
`

	updateMetricQuery = `
	UPDATE metrics
	SET value = $2, dimensions = $3, updated_at = $4
	WHERE id = $1
`
)

func (r *postgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *postgresRepository) ListProjects(ctx context.Context) ([]model.Project, error) {
	rows, err := r.pool.Query(ctx, listProjectsQuery)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.OwnerID, &p.APIKey, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *postgresRepository) GetProject(ctx context.Context, id uuid.UUID) (model.Project, error) {
	var p model.Project
	err := r.pool.QueryRow(ctx, getProjectQuery, id).
		Scan(&p.ID, &p.Name, &p.OwnerID, &p.APIKey, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Project{}, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (r *postgresRepository) ListEvents(ctx context.Context, filter model.EventFilter) ([]model.Event, error) {
	query := listEventsQuery
	if filter.DeviceOnly {
		query = listDeviceEventsQuery
	}

	rows, err := r.pool.Query(ctx, query, filter.ProjectID, filter.Window.Start, filter.Window.End)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return scanEvents(rows)
}

func (r *postgresRepository) SearchEvents(ctx context.Context, q model.EventQuery) ([]model.Event, error) {
	query, args := buildSearchEventsQuery(q)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}
	return scanEvents(rows)
}

func (r *postgresRepository) ListDevices(ctx context.Context, q model.DeviceQuery) ([]model.Device, error) {
	query, args := buildListDevicesQuery(q)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query devices: %w", err)
	}
	defer rows.Close()

	var devices []model.Device
	for rows.Next() {
		var d model.Device
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.DeviceID, &d.Platform, &d.OSVersion,
			&d.AppVersion, &d.Country, &d.FirstSeen, &d.LastSeen); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func scanEvents(rows pgx.Rows) ([]model.Event, error) {
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		var eventType string
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.DeviceID, &eventType, &e.EventName,
			&e.Parameters, &e.Timestamp, &e.Platform); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.EventType = model.EventType(eventType)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *postgresRepository) ListCompletedSessions(ctx context.Context, projectID uuid.UUID, day time.Time) ([]model.Session, error) {
	window := model.DayOf(day)

	rows, err := r.pool.Query(ctx, listCompletedSessionsQuery, projectID, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		var s model.Session
		if err := rows.Scan(&s.ID, &s.DeviceID, &s.SessionID, &s.StartTime, &s.EndTime, &s.Duration); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *postgresRepository) FindMetric(ctx context.Context, key model.MetricKey) (model.Metric, error) {
	row := r.pool.QueryRow(ctx, findMetricQuery,
		key.ProjectID,
		string(key.MetricType),
		string(key.Period),
		key.PeriodStart.UTC(),
	)

	m, err := scanMetric(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Metric{}, ErrNotFound
	}
	if err != nil {
		return model.Metric{}, fmt.Errorf("find metric: %w", err)
	}
	return m, nil
}

func (r *postgresRepository) InsertMetric(ctx context.Context, metric model.Metric) error {
	_, err := r.pool.Exec(ctx, insertMetricQuery,
		metric.ID,
		metric.ProjectID,
		string(metric.MetricType),
		string(metric.Period),
		metric.PeriodStart.UTC(),
		metric.Value,
		metric.Dimensions,
		metric.CreatedAt,
		metric.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert metric %s: %w", metric.MetricType, ErrDuplicateMetric)
	}
	if err != nil {
		return fmt.Errorf("insert metric: %w", err)
	}
	return nil
}

func (r *postgresRepository) UpdateMetric(ctx context.Context, metric model.Metric) error {
	tag, err := r.pool.Exec(ctx, updateMetricQuery, metric.ID, metric.Value, metric.Dimensions, metric.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update metric: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("metric %s: %w", metric.ID, ErrNotFound)
	}
	return nil
}

func (r *postgresRepository) ListMetrics(ctx context.Context, filter model.MetricsFilter) ([]model.Metric, error) {
	query, args := buildListMetricsQuery(filter)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	var metrics []model.Metric
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// buildListMetricsQuery only interpolates fixed column predicates; every value is a bind parameter.
func buildListMetricsQuery(filter model.MetricsFilter) (string, []any) {
	where := []string{"project_id = $1"}
	args := []any{filter.ProjectID}

	add := func(predicate string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(predicate, len(args)))
	}

	if filter.MetricType != "" {
		add("metric_type = $%d", string(filter.MetricType))
	}
	if filter.Period != "" {
		add("period = $%d", string(filter.Period))
	}
	if !filter.From.IsZero() {
		add("period_start >= $%d::date", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		add("period_start <= $%d::date", filter.To.UTC())
	}

	query := fmt.Sprintf(`
	SELECT id, project_id, metric_type, period, period_start, value, dimensions::text, created_at, updated_at
	FROM metrics
	WHERE %s
	ORDER BY period_start, metric_type, period
`, strings.Join(where, " AND "))

	return query, args
}

// buildSearchEventsQuery filters on the SDK device id through a subquery so an
// unknown device yields an empty page.
func buildSearchEventsQuery(q model.EventQuery) (string, []any) {
	where := []string{"e.project_id = $1"}
	args := []any{q.ProjectID}

	add := func(predicate string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(predicate, len(args)))
	}

	if q.EventType != "" {
		add("e.event_type = $%d", string(q.EventType))
	}
	if q.EventName != "" {
		add("e.event_name = $%d", q.EventName)
	}
	if q.DeviceID != "" {
		add("e.device_id IN (SELECT id FROM devices WHERE project_id = $1 AND device_id = $%d)", q.DeviceID)
	}
	if q.Platform != "" {
		add("d.platform = $%d", q.Platform)
	}
	if !q.From.IsZero() {
		add("e.ts >= $%d", q.From.UTC())
	}
	if !q.To.IsZero() {
		add("e.ts <= $%d", q.To.UTC())
	}

	args = append(args, q.Limit, q.Offset)
	query := fmt.Sprintf(`
	SELECT e.id, e.project_id, e.device_id, e.event_type, e.event_name,
	       COALESCE(e.parameters::text, ''), e.ts, COALESCE(d.platform, '')
	FROM events e
	LEFT JOIN devices d ON d.id = e.device_id
	WHERE %s
	ORDER BY e.ts DESC, e.id
	LIMIT $%d OFFSET $%d
`, strings.Join(where, " AND "), len(args)-1, len(args))

	return query, args
}

func buildListDevicesQuery(q model.DeviceQuery) (string, []any) {
	where := []string{"project_id = $1"}
	args := []any{q.ProjectID}

	add := func(predicate string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(predicate, len(args)))
	}

	if q.Platform != "" {
		add("platform = $%d", q.Platform)
	}
	if !q.FirstSeenFrom.IsZero() {
		add("first_seen >= $%d", q.FirstSeenFrom.UTC())
	}
	if !q.LastSeenTo.IsZero() {
		add("last_seen <= $%d", q.LastSeenTo.UTC())
	}

	args = append(args, q.Limit, q.Offset)
	query := fmt.Sprintf(`
	SELECT id, project_id, device_id, platform, os_version, app_version, country, first_seen, last_seen
	FROM devices
	WHERE %s
	ORDER BY last_seen DESC, id
	LIMIT $%d OFFSET $%d
`, strings.Join(where, " AND "), len(args)-1, len(args))

	return query, args
}

func scanMetric(row pgx.Row) (model.Metric, error) {
	var m model.Metric
	var metricType, period string
	err := row.Scan(&m.ID, &m.ProjectID, &metricType, &period, &m.PeriodStart, &m.Value,
		&m.Dimensions, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return model.Metric{}, err
	}
	m.MetricType = model.MetricType(metricType)
	m.Period = model.Period(period)
	m.PeriodStart = m.PeriodStart.UTC()
	return m, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
