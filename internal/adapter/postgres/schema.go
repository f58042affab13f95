package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of *pgxpool.Pool the repositories use. pgxmock pools
// satisfy it too.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS hostname_blocks (
		hostname TEXT PRIMARY KEY,
		blocked_until TIMESTAMPTZ NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		block_type TEXT NOT NULL,
		blocked_by_user_id TEXT NOT NULL DEFAULT '',
		duration_minutes INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_hostname_blocks_until ON hostname_blocks (blocked_until)`,
	`CREATE TABLE IF NOT EXISTS account_block_events (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		hostname TEXT NOT NULL,
		detected_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_account_block_events_user ON account_block_events (user_id, detected_at DESC)`,
	`CREATE TABLE IF NOT EXISTS system_events (
		id BIGSERIAL PRIMARY KEY,
		type TEXT NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS action_log (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		action_type TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		reference_id TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// EnsureSchema creates the tables the repositories need if they are missing.
func EnsureSchema(ctx context.Context, db DBTX) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
