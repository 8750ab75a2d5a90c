package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

const (
	connectAttempts = 10
	connectBackoff  = 2 * time.Second
)

// Open connects to Postgres, retrying while the server is still starting, and
// applies the schema.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		db  *sql.DB
		err error
	)
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		db, err = sql.Open("postgres", dsn)
		if err == nil {
			err = db.PingContext(ctx)
		}
		if err == nil {
			break
		}
		if db != nil {
			_ = db.Close()
		}
		logger.Warn("postgres not ready", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectBackoff):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS rate_tables (
		offering_id TEXT NOT NULL,
		room_id TEXT NOT NULL DEFAULT '',
		currency CHAR(3) NOT NULL,
		booking_fee BIGINT NOT NULL DEFAULT 0,
		deposit BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (offering_id, room_id)
	)`,
	`CREATE TABLE IF NOT EXISTS rate_tiers (
		offering_id TEXT NOT NULL,
		room_id TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL,
		unit_price BIGINT NOT NULL,
		discounted BIGINT,
		PRIMARY KEY (offering_id, room_id, kind),
		FOREIGN KEY (offering_id, room_id) REFERENCES rate_tables (offering_id, room_id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		offering_id TEXT NOT NULL,
		room_id TEXT NOT NULL DEFAULT '',
		guest_id TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		payment_method TEXT NOT NULL DEFAULT '',
		payment_option TEXT NOT NULL,
		from_date DATE NOT NULL,
		to_date DATE NOT NULL,
		calculation JSONB NOT NULL,
		upfront_amount BIGINT NOT NULL,
		currency CHAR(3) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		version BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS booking_milestones (
		booking_id TEXT NOT NULL REFERENCES bookings (id) ON DELETE CASCADE,
		sequence INT NOT NULL,
		due_date DATE NOT NULL,
		amount BIGINT NOT NULL,
		currency CHAR(3) NOT NULL,
		status TEXT NOT NULL,
		paid_at TIMESTAMPTZ,
		payment_ref TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (booking_id, sequence)
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		payload JSONB NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL,
		aggregate TEXT NOT NULL,
		headers JSONB NOT NULL DEFAULT '{}',
		state TEXT NOT NULL,
		attempts INT NOT NULL DEFAULT 0,
		next_attempt_at TIMESTAMPTZ NOT NULL,
		claimed_by TEXT NOT NULL DEFAULT '',
		claimed_at TIMESTAMPTZ,
		sent_at TIMESTAMPTZ,
		last_error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS outbox_events_due ON outbox_events (state, next_attempt_at)`,
	`CREATE TABLE IF NOT EXISTS inbox_events (
		event_id TEXT NOT NULL,
		consumer TEXT NOT NULL,
		received_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (event_id, consumer)
	)`,
	`CREATE TABLE IF NOT EXISTS idempotency_keys (
		key TEXT PRIMARY KEY,
		payload BYTEA NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate creates the tables the driver needs. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}
