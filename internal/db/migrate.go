package db

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var postgresSchema string

// RunMigrations ensures required tables exist. This keeps the service
// self-contained without an external migration step.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// clickhouseSchema is applied one statement at a time; the native protocol
// rejects multi-statement queries.
var clickhouseSchema = []string{
	`
CREATE TABLE IF NOT EXISTS projects
(
	id          UUID,
	name        String,
	owner_id    UUID,
	api_key     String,
	created_at  DateTime64(3, 'UTC'),
	updated_at  DateTime64(3, 'UTC')
)
ENGINE = ReplacingMergeTree(updated_at)
ORDER BY id`,
	`
CREATE TABLE IF NOT EXISTS devices
(
	id           UUID,
	project_id   UUID,
	device_id    String,
	platform     LowCardinality(String),
	os_version   String,
	app_version  String,
	country      LowCardinality(String),
	first_seen   DateTime64(3, 'UTC'),
	last_seen    DateTime64(3, 'UTC')
)
ENGINE = ReplacingMergeTree(last_seen)
ORDER BY (project_id, id)`,
	`
CREATE TABLE IF NOT EXISTS events
(
	id          UUID,
	project_id  UUID,
	device_id   Nullable(UUID),
	event_type  LowCardinality(String),
	event_name  String,
	parameters  String DEFAULT '{}',
	ts          DateTime64(3, 'UTC')
)
ENGINE = MergeTree
PARTITION BY toYYYYMM(ts)
ORDER BY (project_id, ts)`,
	`
CREATE TABLE IF NOT EXISTS sessions
(
	id          UUID,
	device_id   UUID,
	session_id  String,
	start_time  DateTime64(3, 'UTC'),
	end_time    Nullable(DateTime64(3, 'UTC')),
	duration    Nullable(Int64)
)
ENGINE = ReplacingMergeTree
PARTITION BY toYYYYMM(start_time)
ORDER BY (device_id, start_time, id)`,
	`
CREATE TABLE IF NOT EXISTS metrics
(
	id            UUID,
	project_id    UUID,
	metric_type   LowCardinality(String),
	period        LowCardinality(String),
	period_start  Date,
	value         Float64,
	dimensions    Nullable(String),
	created_at    DateTime64(3, 'UTC'),
	updated_at    DateTime64(3, 'UTC')
)
ENGINE = ReplacingMergeTree(updated_at)
ORDER BY (project_id, metric_type, period, period_start)`,
}

// RunClickHouseMigrations creates the ClickHouse tables when they are missing.
func RunClickHouseMigrations(ctx context.Context, conn clickhouse.Conn) error {
	for _, stmt := range clickhouseSchema {
		if err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}
