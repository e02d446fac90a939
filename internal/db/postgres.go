package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Pool struct {
	*pgxpool.Pool
}

func Open(ctx context.Context, databaseURL string) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Pool{Pool: pool}, nil
}

func (p *Pool) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}

func PostgresReadyCheck(pool *Pool) func(context.Context) error {
	return func(ctx context.Context) error {
		if pool == nil || pool.Pool == nil {
			return errors.New("db not configured")
		}
		return pool.Ping(ctx)
	}
}

// The partial unique index is the storage-level guard against double
// booking: only pending and confirmed rows hold their (date, time_slot).
const schema = `
CREATE TABLE IF NOT EXISTS time_slot_rules (
	id                    TEXT PRIMARY KEY,
	day_of_week           SMALLINT NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
	start_time            TEXT NOT NULL,
	end_time              TEXT NOT NULL,
	slot_duration_minutes INTEGER NOT NULL CHECK (slot_duration_minutes > 0),
	is_active             BOOLEAN NOT NULL DEFAULT TRUE,
	created_at            TIMESTAMPTZ NOT NULL,
	updated_at            TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_time_slot_rules_day ON time_slot_rules (day_of_week, is_active);

CREATE TABLE IF NOT EXISTS blocked_dates (
	id         TEXT PRIMARY KEY,
	date       TEXT NOT NULL UNIQUE,
	reason     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS appointments (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	email              TEXT NOT NULL,
	phone              TEXT NOT NULL DEFAULT '',
	company            TEXT NOT NULL DEFAULT '',
	service            TEXT NOT NULL,
	date               TEXT NOT NULL,
	time_slot          TEXT NOT NULL,
	message            TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL,
	cancellation_token TEXT NOT NULL UNIQUE,
	reminder_sent      BOOLEAN NOT NULL DEFAULT FALSE,
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS uniq_appointments_held_slot
	ON appointments (date, time_slot)
	WHERE status IN ('pending', 'confirmed');
CREATE INDEX IF NOT EXISTS idx_appointments_status_date ON appointments (status, date);
`

func Migrate(ctx context.Context, pool *Pool) error {
	migrateCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := pool.Exec(migrateCtx, schema)
	return err
}
