package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const SchemaSQL = `
CREATE TABLE IF NOT EXISTS routes (
	id               BIGSERIAL PRIMARY KEY,
	name             TEXT NOT NULL UNIQUE,
	start_lat        DOUBLE PRECISION NOT NULL,
	start_lng        DOUBLE PRECISION NOT NULL,
	end_lat          DOUBLE PRECISION NOT NULL,
	end_lng          DOUBLE PRECISION NOT NULL,
	last_normal_time INTEGER,
	last_state       TEXT,
	historical_times JSONB NOT NULL DEFAULT '[]'::jsonb,
	priority         TEXT NOT NULL DEFAULT 'Normal' CHECK (priority IN ('Normal', 'High'))
);

CREATE INDEX IF NOT EXISTS idx_routes_priority ON routes (priority);

CREATE TABLE IF NOT EXISTS config (
	id    BIGSERIAL PRIMARY KEY,
	name  TEXT NOT NULL UNIQUE,
	value TEXT NOT NULL
);
`

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, SchemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
