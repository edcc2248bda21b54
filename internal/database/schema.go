package database

import (
	"context"
	"fmt"
)

const analysesSchema = `
CREATE TABLE IF NOT EXISTS analyses (
	id           UUID PRIMARY KEY,
	source_text  TEXT NOT NULL,
	use_averages BOOLEAN NOT NULL DEFAULT FALSE,
	status       TEXT NOT NULL DEFAULT 'pending'
		CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
	rendered     TEXT NOT NULL DEFAULT '',
	counts       JSONB NOT NULL DEFAULT '{}'::jsonb,
	token_count  INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses (created_at DESC);
CREATE INDEX IF NOT EXISTS idx_analyses_status ON analyses (status);
`

// EnsureSchema creates the tables used by the service if they are missing
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, analysesSchema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
