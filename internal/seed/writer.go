package seed

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Writer bulk-loads datasets with COPY inside one transaction per project.
type Writer struct {
	pool *pgxpool.Pool
}

func NewWriter(pool *pgxpool.Pool) *Writer {
	return &Writer{pool: pool}
}

// Write stores ds and returns the number of rows copied.
func (w *Writer) Write(ctx context.Context, ds Dataset) (int64, error) {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	p := ds.Project
	_, err = tx.Exec(ctx,
		`INSERT INTO projects (id, name, owner_id, api_key, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Name, p.OwnerID, p.APIKey, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert project: %w", err)
	}
	total := int64(1)

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"devices"},
		[]string{"id", "project_id", "device_id", "platform", "os_version", "app_version", "country", "first_seen", "last_seen"},
		pgx.CopyFromSlice(len(ds.Devices), func(i int) ([]any, error) {
			d := ds.Devices[i]
			return []any{d.ID, d.ProjectID, d.DeviceID, d.Platform, d.OSVersion, d.AppVersion, d.Country, d.FirstSeen, d.LastSeen}, nil
		}))
	if err != nil {
		return 0, fmt.Errorf("copy devices: %w", err)
	}
	total += n

	n, err = tx.CopyFrom(ctx, pgx.Identifier{"events"},
		[]string{"id", "project_id", "device_id", "event_type", "event_name", "parameters", "ts"},
		pgx.CopyFromSlice(len(ds.Events), func(i int) ([]any, error) {
			e := ds.Events[i]
			return []any{e.ID, e.ProjectID, e.DeviceID, string(e.EventType), e.EventName, e.Parameters, e.Timestamp}, nil
		}))
	if err != nil {
		return 0, fmt.Errorf("copy events: %w", err)
	}
	total += n

	n, err = tx.CopyFrom(ctx, pgx.Identifier{"sessions"},
		[]string{"id", "device_id", "session_id", "start_time", "end_time", "duration"},
		pgx.CopyFromSlice(len(ds.Sessions), func(i int) ([]any, error) {
			s := ds.Sessions[i]
			return []any{s.ID, s.DeviceID, s.SessionID, s.StartTime, s.EndTime, s.Duration}, nil
		}))
	if err != nil {
		return 0, fmt.Errorf("copy sessions: %w", err)
	}
	total += n

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return total, nil
}
