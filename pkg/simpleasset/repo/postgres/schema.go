package postgres

import (
	"context"
	"fmt"
)

// Schema creates the tables used by Repository. Owners reference assets by
// id inside an array; the link is not enforced by a foreign key.
const Schema = `
CREATE TABLE IF NOT EXISTS assets (
	id           UUID PRIMARY KEY,
	original_key TEXT NOT NULL UNIQUE,
	derived_key  TEXT NOT NULL UNIQUE,
	file_name    TEXT NOT NULL,
	mime_type    TEXT NOT NULL,
	size_bytes   BIGINT NOT NULL DEFAULT 0,
	width        INTEGER NOT NULL DEFAULT 0,
	height       INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS owners (
	id         UUID PRIMARY KEY,
	kind       TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	attributes JSONB NOT NULL DEFAULT '{}'::jsonb,
	asset_ids  UUID[] NOT NULL DEFAULT '{}',
	version    BIGINT NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS owners_kind_created_idx ON owners (kind, created_at DESC);
CREATE INDEX IF NOT EXISTS owners_asset_ids_idx ON owners USING GIN (asset_ids);
`

// Migrate applies Schema. It is safe to run repeatedly.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
