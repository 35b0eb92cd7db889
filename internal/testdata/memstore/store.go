// Package memstore is an in-memory TelemetryRepository for behavioural tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"telemetry-metrics-service/internal/model"
	"telemetry-metrics-service/internal/repository"
)

var _ repository.TelemetryRepository = &Store{}

type Store struct {
	mu       sync.Mutex
	projects []model.Project
	devices  map[uuid.UUID]model.Device
	events   []model.Event
	sessions []model.Session
	metrics  []model.Metric
	failures map[string]error
	calls    map[string]int
	hooks    map[string]func()
}

func New() *Store {
	return &Store{
		devices:  make(map[uuid.UUID]model.Device),
		failures: make(map[string]error),
		calls:    make(map[string]int),
		hooks:    make(map[string]func()),
	}
}

// Fail makes every later call to method return err. A nil err clears it.
func (s *Store) Fail(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

// OnCall runs fn at the start of every later call to method, outside the
// store lock. A nil fn clears it.
func (s *Store) OnCall(method string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		delete(s.hooks, method)
		return
	}
	s.hooks[method] = fn
}

// Calls returns how many times method was invoked.
func (s *Store) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *Store) AddProject(p model.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects = append(s.projects, p)
}

func (s *Store) AddDevice(d model.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[d.ID] = d
}

// AddEvent stores e. Platform is resolved from the device on read.
func (s *Store) AddEvent(e model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	s.events = append(s.events, e)
}

func (s *Store) AddSession(session model.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	s.sessions = append(s.sessions, session)
}

// AddMetric stores m as is, bypassing the key check.
func (s *Store) AddMetric(m model.Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, m)
}

// Metrics returns a copy of every stored metric row.
func (s *Store) Metrics() []model.Metric {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Metric, len(s.metrics))
	copy(out, s.metrics)
	return out
}

// MetricsOf returns the stored rows of one project and type.
func (s *Store) MetricsOf(projectID uuid.UUID, metricType model.MetricType) []model.Metric {
	var out []model.Metric
	for _, m := range s.Metrics() {
		if m.ProjectID == projectID && m.MetricType == metricType {
			out = append(out, m)
		}
	}
	return out
}

func (s *Store) enter(method string) error {
	s.mu.Lock()
	hook := s.hooks[method]
	s.mu.Unlock()
	if hook != nil {
		hook()
	}

	s.mu.Lock()
	s.calls[method]++
	return s.failures[method]
}

func (s *Store) Ping(ctx context.Context) error {
	err := s.enter("Ping")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Store) ListProjects(ctx context.Context) ([]model.Project, error) {
	err := s.enter("ListProjects")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]model.Project, len(s.projects))
	copy(out, s.projects)
	return out, nil
}

func (s *Store) GetProject(ctx context.Context, id uuid.UUID) (model.Project, error) {
	err := s.enter("GetProject")
	defer s.mu.Unlock()
	if err != nil {
		return model.Project{}, err
	}
	for _, p := range s.projects {
		if p.ID == id {
			return p, nil
		}
	}
	return model.Project{}, repository.ErrNotFound
}

func (s *Store) ListEvents(ctx context.Context, filter model.EventFilter) ([]model.Event, error) {
	err := s.enter("ListEvents")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var out []model.Event
	for _, e := range s.events {
		if e.ProjectID != filter.ProjectID || !filter.Window.Contains(e.Timestamp) {
			continue
		}
		if filter.DeviceOnly && !e.DeviceID.Valid {
			continue
		}
		e.Platform = ""
		if e.DeviceID.Valid {
			e.Platform = s.devices[e.DeviceID.UUID].Platform
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) ListCompletedSessions(ctx context.Context, projectID uuid.UUID, day time.Time) ([]model.Session, error) {
	err := s.enter("ListCompletedSessions")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	window := model.DayOf(day)
	var out []model.Session
	for _, session := range s.sessions {
		device, ok := s.devices[session.DeviceID]
		if !ok || device.ProjectID != projectID {
			continue
		}
		if !window.Contains(session.StartTime) || !session.Completed() {
			continue
		}
		out = append(out, session)
	}
	return out, nil
}

func (s *Store) FindMetric(ctx context.Context, key model.MetricKey) (model.Metric, error) {
	err := s.enter("FindMetric")
	defer s.mu.Unlock()
	if err != nil {
		return model.Metric{}, err
	}
	if i := s.indexOfKeyLocked(key); i >= 0 {
		return s.metrics[i], nil
	}
	return model.Metric{}, repository.ErrNotFound
}

func (s *Store) InsertMetric(ctx context.Context, metric model.Metric) error {
	err := s.enter("InsertMetric")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	if s.indexOfKeyLocked(metric.Key()) >= 0 {
		return repository.ErrDuplicateMetric
	}
	s.metrics = append(s.metrics, metric)
	return nil
}

func (s *Store) UpdateMetric(ctx context.Context, metric model.Metric) error {
	err := s.enter("UpdateMetric")
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	for i := range s.metrics {
		if s.metrics[i].ID == metric.ID {
			s.metrics[i].Value = metric.Value
			s.metrics[i].Dimensions = metric.Dimensions
			s.metrics[i].UpdatedAt = metric.UpdatedAt
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *Store) ListMetrics(ctx context.Context, filter model.MetricsFilter) ([]model.Metric, error) {
	err := s.enter("ListMetrics")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var out []model.Metric
	for _, m := range s.metrics {
		switch {
		case m.ProjectID != filter.ProjectID,
			filter.MetricType != "" && m.MetricType != filter.MetricType,
			filter.Period != "" && m.Period != filter.Period,
			!filter.From.IsZero() && m.PeriodStart.Before(model.DayOf(filter.From).Start),
			!filter.To.IsZero() && !m.PeriodStart.Before(model.DayOf(filter.To).End):
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PeriodStart.Before(out[j].PeriodStart)
	})
	return out, nil
}

func (s *Store) SearchEvents(ctx context.Context, q model.EventQuery) ([]model.Event, error) {
	err := s.enter("SearchEvents")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var out []model.Event
	for _, e := range s.events {
		var device model.Device
		if e.DeviceID.Valid {
			device = s.devices[e.DeviceID.UUID]
		}
		switch {
		case e.ProjectID != q.ProjectID,
			q.EventType != "" && e.EventType != q.EventType,
			q.EventName != "" && e.EventName != q.EventName,
			q.DeviceID != "" && (device.DeviceID != q.DeviceID || device.ProjectID != q.ProjectID),
			q.Platform != "" && device.Platform != q.Platform,
			!q.From.IsZero() && e.Timestamp.Before(q.From),
			!q.To.IsZero() && e.Timestamp.After(q.To):
			continue
		}
		e.Platform = device.Platform
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return page(out, q.Limit, q.Offset), nil
}

func (s *Store) ListDevices(ctx context.Context, q model.DeviceQuery) ([]model.Device, error) {
	err := s.enter("ListDevices")
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var out []model.Device
	for _, d := range s.devices {
		switch {
		case d.ProjectID != q.ProjectID,
			q.Platform != "" && d.Platform != q.Platform,
			!q.FirstSeenFrom.IsZero() && d.FirstSeen.Before(q.FirstSeenFrom),
			!q.LastSeenTo.IsZero() && d.LastSeen.After(q.LastSeenTo):
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastSeen.Equal(out[j].LastSeen) {
			return out[i].LastSeen.After(out[j].LastSeen)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return page(out, q.Limit, q.Offset), nil
}

func page[T any](rows []T, limit, offset int) []T {
	offset = max(offset, 0)
	if offset >= len(rows) {
		return nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func (s *Store) indexOfKeyLocked(key model.MetricKey) int {
	for i, m := range s.metrics {
		if m.ProjectID == key.ProjectID &&
			m.MetricType == key.MetricType &&
			m.Period == key.Period &&
			model.SameDate(m.PeriodStart, key.PeriodStart) {
			return i
		}
	}
	return -1
}
