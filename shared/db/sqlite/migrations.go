package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dfryer1193/cms/shared/db"
)

type migration struct {
	version int
	name    string
	up      string
}

// Append only; applied versions are recorded in schema_migrations
var migrations = []migration{
	{
		version: 1,
		name:    "create_catalog_table",
		up: `
			CREATE TABLE IF NOT EXISTS catalog (
				slug TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				snippet TEXT NOT NULL,
				html_path TEXT NOT NULL,
				published_at TIMESTAMP NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_catalog_published_at
			ON catalog(published_at DESC);
		`,
	},
}

const createSchemaMigrations = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)
`

// migrate applies every migration newer than the recorded schema version and
// returns how many were applied
func migrate(ctx context.Context, conn *sql.DB) (int, error) {
	if _, err := conn.ExecContext(ctx, createSchemaMigrations); err != nil {
		return 0, fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	var current int
	if err := conn.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return 0, fmt.Errorf("failed to get current schema version: %w", err)
	}

	applied := 0
	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		err := db.RunInTransaction(ctx, conn, func(txCtx context.Context) error {
			exec := db.GetExecutor(txCtx, conn)
			if _, err := exec.ExecContext(txCtx, m.up); err != nil {
				return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
			}
			if _, err := exec.ExecContext(txCtx, "INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.version, m.name); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", m.version, err)
			}
			return nil
		})
		if err != nil {
			return applied, err
		}
		applied++
	}

	return applied, nil
}
