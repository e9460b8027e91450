package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite implementation of Store.
//
// It stores workflows and steps in a single-file database. Designed for:
//   - Development and testing with zero setup
//   - Single-host deployments of the CLI
//
// The pure-Go modernc.org/sqlite driver is used, so no cgo toolchain is needed.
// SQLite supports a single writer; the pool is limited to one connection and WAL
// mode keeps readers unblocked.
//
// Schema:
//   - workflows: one row per workflow
//   - workflow_steps: four rows per workflow, unique (workflow_id, step_order)
type SQLiteStore struct {
	sqlStore
	path string
}

// NewSQLiteStore opens (creating if needed) the database at path.
//
// The path parameter specifies the database file location:
//   - "./devflow.db" - file in current directory
//   - ":memory:" - in-memory database (data lost on close)
//
// Example:
//
//	st, err := store.NewSQLiteStore("./devflow.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	st := &SQLiteStore{sqlStore: sqlStore{db: db}, path: path}
	if err := st.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return st, nil
}

// Path returns the database location the store was opened with.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			id TEXT NOT NULL PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			requirements TEXT NOT NULL,
			status TEXT NOT NULL,
			owner_id TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_workflows_owner ON workflows(owner_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS workflow_steps (
			id TEXT NOT NULL PRIMARY KEY,
			workflow_id TEXT NOT NULL REFERENCES workflows(id),
			specialization TEXT NOT NULL,
			step_order INTEGER NOT NULL,
			status TEXT NOT NULL,
			input_data TEXT NOT NULL,
			output_data TEXT NULL,
			execution_time_ms INTEGER NULL,
			error_message TEXT NULL,
			completed_at INTEGER NULL,
			UNIQUE(workflow_id, step_order)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
