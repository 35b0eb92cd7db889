package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"

	"telemetry-metrics-service/internal/model"
)

// clickhouseRepository keeps metrics in a ReplacingMergeTree keyed by the
// four-part metric key. An update is a re-insert of the same key with a newer
// updated_at; reads use FINAL so only the latest version is visible.
type clickhouseRepository struct {
	conn clickhouse.Conn
}

// NewClickHouseRepository creates a TelemetryRepository backed by ClickHouse.
func NewClickHouseRepository(conn clickhouse.Conn) TelemetryRepository {
	return &clickhouseRepository{conn: conn}
}

type chProject struct {
	ID        uuid.UUID `ch:"id"`
	Name      string    `ch:"name"`
	OwnerID   uuid.UUID `ch:"owner_id"`
	APIKey    string    `ch:"api_key"`
	CreatedAt time.Time `ch:"created_at"`
	UpdatedAt time.Time `ch:"updated_at"`
}

type chEvent struct {
	ID         uuid.UUID  `ch:"id"`
	ProjectID  uuid.UUID  `ch:"project_id"`
	DeviceID   *uuid.UUID `ch:"device_id"`
	EventType  string     `ch:"event_type"`
	EventName  string     `ch:"event_name"`
	Parameters string     `ch:"parameters"`
	Timestamp  time.Time  `ch:"ts"`
	Platform   string     `ch:"platform"`
}

type chDevice struct {
	ID         uuid.UUID `ch:"id"`
	ProjectID  uuid.UUID `ch:"project_id"`
	DeviceID   string    `ch:"device_id"`
	Platform   string    `ch:"platform"`
	OSVersion  string    `ch:"os_version"`
	AppVersion string    `ch:"app_version"`
	Country    string    `ch:"country"`
	FirstSeen  time.Time `ch:"first_seen"`
	LastSeen   time.Time `ch:"last_seen"`
}

type chSession struct {
	ID        uuid.UUID  `ch:"id"`
	DeviceID  uuid.UUID  `ch:"device_id"`
	SessionID string     `ch:"session_id"`
	StartTime time.Time  `ch:"start_time"`
	EndTime   *time.Time `ch:"end_time"`
	Duration  *int64     `ch:"duration"`
}

type chMetric struct {
	ID          uuid.UUID `ch:"id"`
	ProjectID   uuid.UUID `ch:"project_id"`
	MetricType  string    `ch:"metric_type"`
	Period      string    `ch:"period"`
	PeriodStart time.Time `ch:"period_start"`
	Value       float64   `ch:"value"`
	Dimensions  *string   `ch:"dimensions"`
	CreatedAt   time.Time `ch:"created_at"`
	UpdatedAt   time.Time `ch:"updated_at"`
}

const (
	chListProjectsQuery = `
	SELECT id, name, owner_id, api_key, created_at, updated_at
	FROM projects FINAL
	ORDER BY created_at, id
`

	chGetProjectQuery = `
	SELECT id, name, owner_id, api_key, created_at, updated_at
	FROM projects FINAL
	WHERE id = ?
	LIMIT 1
`

	chListEventsQuery = `
	SELECT e.id AS id, e.project_id AS project_id, e.device_id AS device_id,
	       e.event_type AS event_type, e.event_name AS event_name,
	       e.parameters AS parameters, e.ts AS ts, d.platform AS platform
	FROM events AS e
	LEFT JOIN (SELECT id, platform FROM devices FINAL) AS d ON d.id = e.device_id
	WHERE e.project_id = ?
	  AND e.ts >= ?
	  AND e.ts <  ?
`

	chListDeviceEventsQuery = chListEventsQuery + `	  AND e.device_id IS NOT NULL
`

	chListCompletedSessionsQuery = `
	SELECT s.id AS id, s.device_id AS device_id, s.session_id AS session_id,
	       s.start_time AS start_time, s.end_time AS end_time, s.duration AS duration
	FROM sessions AS s FINAL
	INNER JOIN (SELECT id FROM devices FINAL WHERE project_id = ?) AS d ON d.id = s.device_id
	WHERE s.start_time >= ?
	  AND s.start_time <  ?
	  AND s.end_time IS NOT NULL
	  AND s.duration IS NOT NULL
`

	chFindMetricQuery = `
	SELECT id, project_id, metric_type, period, period_start, value, dimensions, created_at, updated_at
	FROM metrics FINAL
	WHERE project_id = ?
	  AND metric_type = ?
	  AND period = ?
	  AND period_start = toDate(?)
	LIMIT 1
`

	chInsertMetricQuery = `
	INSERT INTO metrics (id, project_id, metric_type, period, period_start, value, dimensions, created_at, updated_at)
`
)

func (r *clickhouseRepository) Ping(ctx context.Context) error {
	return r.conn.Ping(ctx)
}

func (r *clickhouseRepository) ListProjects(ctx context.Context) ([]model.Project, error) {
	var rows []chProject
	if err := r.conn.Select(ctx, &rows, chListProjectsQuery); err != nil {
		return nil, fmt.Errorf("select projects: %w", err)
	}

	projects := make([]model.Project, 0, len(rows))
	for _, row := range rows {
		projects = append(projects, row.toModel())
	}
	return projects, nil
}

func (r *clickhouseRepository) GetProject(ctx context.Context, id uuid.UUID) (model.Project, error) {
	var rows []chProject
	if err := r.conn.Select(ctx, &rows, chGetProjectQuery, id); err != nil {
		return model.Project{}, fmt.Errorf("select project: %w", err)
	}
	if len(rows) == 0 {
		return model.Project{}, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return rows[0].toModel(), nil
}

func (r *clickhouseRepository) ListEvents(ctx context.Context, filter model.EventFilter) ([]model.Event, error) {
	query := chListEventsQuery
	if filter.DeviceOnly {
		query = chListDeviceEventsQuery
	}

	var rows []chEvent
	if err := r.conn.Select(ctx, &rows, query, filter.ProjectID, filter.Window.Start, filter.Window.End); err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}

	events := make([]model.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.toModel())
	}
	return events, nil
}

func (r *clickhouseRepository) SearchEvents(ctx context.Context, q model.EventQuery) ([]model.Event, error) {
	query, args := buildClickHouseSearchEventsQuery(q)

	var rows []chEvent
	if err := r.conn.Select(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}

	events := make([]model.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.toModel())
	}
	return events, nil
}

func (r *clickhouseRepository) ListDevices(ctx context.Context, q model.DeviceQuery) ([]model.Device, error) {
	query, args := buildClickHouseListDevicesQuery(q)

	var rows []chDevice
	if err := r.conn.Select(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select devices: %w", err)
	}

	devices := make([]model.Device, 0, len(rows))
	for _, row := range rows {
		devices = append(devices, model.Device{
			ID:         row.ID,
			ProjectID:  row.ProjectID,
			DeviceID:   row.DeviceID,
			Platform:   row.Platform,
			OSVersion:  row.OSVersion,
			AppVersion: row.AppVersion,
			Country:    row.Country,
			FirstSeen:  row.FirstSeen,
			LastSeen:   row.LastSeen,
		})
	}
	return devices, nil
}

func (r *clickhouseRepository) ListCompletedSessions(ctx context.Context, projectID uuid.UUID, day time.Time) ([]model.Session, error) {
	window := model.DayOf(day)

	var rows []chSession
	if err := r.conn.Select(ctx, &rows, chListCompletedSessionsQuery, projectID, window.Start, window.End); err != nil {
		return nil, fmt.Errorf("select sessions: %w", err)
	}

	sessions := make([]model.Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, model.Session{
			ID:        row.ID,
			DeviceID:  row.DeviceID,
			SessionID: row.SessionID,
			StartTime: row.StartTime,
			EndTime:   row.EndTime,
			Duration:  row.Duration,
		})
	}
	return sessions, nil
}

func (r *clickhouseRepository) FindMetric(ctx context.Context, key model.MetricKey) (model.Metric, error) {
	var rows []chMetric
	err := r.conn.Select(ctx, &rows, chFindMetricQuery,
		key.ProjectID,
		string(key.MetricType),
		string(key.Period),
		key.PeriodStart.UTC(),
	)
	if err != nil {
		return model.Metric{}, fmt.Errorf("find metric: %w", err)
	}
	if len(rows) == 0 {
		return model.Metric{}, ErrNotFound
	}
	return rows[0].toModel(), nil
}

// InsertMetric never reports ErrDuplicateMetric: duplicates collapse on merge.
func (r *clickhouseRepository) InsertMetric(ctx context.Context, metric model.Metric) error {
	return r.writeMetric(ctx, metric)
}

// UpdateMetric re-inserts the row under the same key; the newer updated_at wins.
func (r *clickhouseRepository) UpdateMetric(ctx context.Context, metric model.Metric) error {
	return r.writeMetric(ctx, metric)
}

func (r *clickhouseRepository) writeMetric(ctx context.Context, metric model.Metric) error {
	batch, err := r.conn.PrepareBatch(ctx, chInsertMetricQuery)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
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
	if err != nil {
		_ = batch.Abort()
		return fmt.Errorf("append batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

func (r *clickhouseRepository) ListMetrics(ctx context.Context, filter model.MetricsFilter) ([]model.Metric, error) {
	query, args := buildClickHouseListMetricsQuery(filter)

	var rows []chMetric
	if err := r.conn.Select(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select metrics: %w", err)
	}

	metrics := make([]model.Metric, 0, len(rows))
	for _, row := range rows {
		metrics = append(metrics, row.toModel())
	}
	return metrics, nil
}

func buildClickHouseListMetricsQuery(filter model.MetricsFilter) (string, []any) {
	where := []string{"project_id = ?"}
	args := []any{filter.ProjectID}

	if filter.MetricType != "" {
		where = append(where, "metric_type = ?")
		args = append(args, string(filter.MetricType))
	}
	if filter.Period != "" {
		where = append(where, "period = ?")
		args = append(args, string(filter.Period))
	}
	if !filter.From.IsZero() {
		where = append(where, "period_start >= toDate(?)")
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		where = append(where, "period_start <= toDate(?)")
		args = append(args, filter.To.UTC())
	}

	query := fmt.Sprintf(`
	SELECT id, project_id, metric_type, period, period_start, value, dimensions, created_at, updated_at
	FROM metrics FINAL
	WHERE %s
	ORDER BY period_start, metric_type, period
`, strings.Join(where, " AND "))

	return query, args
}

func buildClickHouseSearchEventsQuery(q model.EventQuery) (string, []any) {
	where := []string{"e.project_id = ?"}
	args := []any{q.ProjectID}

	if q.EventType != "" {
		where = append(where, "e.event_type = ?")
		args = append(args, string(q.EventType))
	}
	if q.EventName != "" {
		where = append(where, "e.event_name = ?")
		args = append(args, q.EventName)
	}
	if q.DeviceID != "" {
		where = append(where, "e.device_id IN (SELECT id FROM devices FINAL WHERE project_id = ? AND device_id = ?)")
		args = append(args, q.ProjectID, q.DeviceID)
	}
	if q.Platform != "" {
		where = append(where, "d.platform = ?")
		args = append(args, q.Platform)
	}
	if !q.From.IsZero() {
		where = append(where, "e.ts >= ?")
		args = append(args, q.From.UTC())
	}
	if !q.To.IsZero() {
		where = append(where, "e.ts <= ?")
		args = append(args, q.To.UTC())
	}
	args = append(args, q.Limit, q.Offset)

	query := fmt.Sprintf(`
	SELECT e.id AS id, e.project_id AS project_id, e.device_id AS device_id,
	       e.event_type AS event_type, e.event_name AS event_name,
	       e.parameters AS parameters, e.ts AS ts, d.platform AS platform
	FROM events AS e
	LEFT JOIN (SELECT id, platform FROM devices FINAL) AS d ON d.id = e.device_id
	WHERE %s
	ORDER BY e.ts DESC, e.id
	LIMIT ? OFFSET ?
`, strings.Join(where, " AND "))

	return query, args
}

func buildClickHouseListDevicesQuery(q model.DeviceQuery) (string, []any) {
	where := []string{"project_id = ?"}
	args := []any{q.ProjectID}

	if q.Platform != "" {
		where = append(where, "platform = ?")
		args = append(args, q.Platform)
	}
	if !q.FirstSeenFrom.IsZero() {
		where = append(where, "first_seen >= ?")
		args = append(args, q.FirstSeenFrom.UTC())
	}
	if !q.LastSeenTo.IsZero() {
		where = append(where, "last_seen <= ?")
		args = append(args, q.LastSeenTo.UTC())
	}
	args = append(args, q.Limit, q.Offset)

	query := fmt.Sprintf(`
	SELECT id, project_id, device_id, platform, os_version, app_version, country, first_seen, last_seen
	FROM devices FINAL
	WHERE %s
	ORDER BY last_seen DESC, id
	LIMIT ? OFFSET ?
`, strings.Join(where, " AND "))

	return query, args
}

func (e chEvent) toModel() model.Event {
	event := model.Event{
		ID:         e.ID,
		ProjectID:  e.ProjectID,
		EventType:  model.EventType(e.EventType),
		EventName:  e.EventName,
		Parameters: e.Parameters,
		Timestamp:  e.Timestamp,
	}
	if e.DeviceID != nil {
		event.DeviceID = uuid.NullUUID{UUID: *e.DeviceID, Valid: true}
		event.Platform = e.Platform
	}
	return event
}

func (p chProject) toModel() model.Project {
	return model.Project{
		ID:        p.ID,
		Name:      p.Name,
		OwnerID:   p.OwnerID,
		APIKey:    p.APIKey,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (m chMetric) toModel() model.Metric {
	return model.Metric{
		ID:          m.ID,
		ProjectID:   m.ProjectID,
		MetricType:  model.MetricType(m.MetricType),
		Period:      model.Period(m.Period),
		PeriodStart: m.PeriodStart.UTC(),
		Value:       m.Value,
		Dimensions:  m.Dimensions,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
