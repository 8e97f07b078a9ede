package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS dataset (
		id            uuid PRIMARY KEY,
		name          text NOT NULL,
		status        text NOT NULL DEFAULT 'running',
		zones_count   integer NOT NULL DEFAULT 0,
		records_count integer NOT NULL DEFAULT 0,
		message       text NOT NULL DEFAULT '',
		created_at    timestamptz NOT NULL DEFAULT NOW(),
		completed_at  timestamptz
	)`,
	`CREATE TABLE IF NOT EXISTS zone (
		dataset_id uuid NOT NULL REFERENCES dataset(id) ON DELETE CASCADE,
		id         bigint NOT NULL,
		geometry   jsonb NOT NULL,
		properties jsonb NOT NULL DEFAULT '{}',
		PRIMARY KEY (dataset_id, id)
	)`,
	`CREATE TABLE IF NOT EXISTS od_record (
		dataset_id  uuid NOT NULL REFERENCES dataset(id) ON DELETE CASCADE,
		mode        text NOT NULL,
		seq         integer NOT NULL,
		origin      bigint NOT NULL,
		destination bigint NOT NULL,
		volume      double precision NOT NULL CHECK (volume >= 0),
		PRIMARY KEY (dataset_id, mode, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_od_record_origin ON od_record (dataset_id, mode, origin)`,
	`CREATE INDEX IF NOT EXISTS idx_od_record_destination ON od_record (dataset_id, mode, destination)`,
}

// EnsureSchema creates the dataset tables when they are missing
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
