// Package storage holds the sqlite plumbing of the development identity
// directory: connection setup, schema migrations and query timing.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// migration is one schema step, applied inside its own transaction.
type migration struct {
	name string
	up   func(ctx context.Context, tx *sql.Tx) error
}

var migrations = []migration{
	{name: "member", up: func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
		CREATE TABLE member (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL,
			language TEXT NOT NULL,
			status TEXT NOT NULL,
			code_hash TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`)
		return err
	}},
	{name: "member_email_index", up: func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `CREATE INDEX idx_member_email ON member(email) WHERE email != ''`)
		return err
	}},
}

// LatestSchemaVersion is the version after every migration has run.
func LatestSchemaVersion() int {
	return len(migrations)
}

// Open opens the sqlite database at path and migrates it.
// PRE: path is a file path or ":memory:"
// POST: Returns a migrated connection pool; in-memory databases use a single connection
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := MigrateDB(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// MigrateDB brings the schema to LatestSchemaVersion.
// PRE: db is a valid database connection
// POST: All pending migrations applied in order; WAL and foreign keys enabled
func MigrateDB(ctx context.Context, db *sql.DB) error {
	// WAL mode for concurrent readers; ignored by in-memory databases.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)"); err != nil {
		return fmt.Errorf("failed to create schema_version: %w", err)
	}

	current, err := SchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	for v := current; v < len(migrations); v++ {
		m := migrations[v]
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", v+1, m.name, err)
		}
		if err := m.up(ctx, tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", v+1, m.name, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM schema_version"); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", v+1, m.name, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", v+1); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", v+1, m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d (%s): %w", v+1, m.name, err)
		}
		slog.Info("migration_applied", "version", v+1, "name", m.name)
	}
	return nil
}

// SchemaVersion returns the applied schema version, 0 for a fresh database.
func SchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}
