package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB implementation of Store.
//
// Designed for:
//   - Production deployments with several engine processes
//   - Workflows that must survive process restarts
//
// Concurrent engines are kept from double-advancing a workflow by the
// compare-and-set UPDATE in TransitionWorkflow.
type MySQLStore struct {
	sqlStore
}

// NewMySQLStore creates a new MySQL-backed store.
//
// The DSN (Data Source Name) format is:
//
//	[username[:password]@][protocol[(address)]]/dbname[?param1=value1&...&paramN=valueN]
//
// Security Warning:
//
//	NEVER hardcode credentials in your source code. Read the DSN from the
//	environment or the devflow config file.
//
// Example:
//
//	st, err := store.NewMySQLStore("user:pass@tcp(localhost:3306)/devflow")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	st := &MySQLStore{sqlStore: sqlStore{db: db}}
	if err := st.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return st, nil
}

func (s *MySQLStore) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			id VARCHAR(64) NOT NULL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL,
			requirements LONGTEXT NOT NULL,
			status VARCHAR(32) NOT NULL,
			owner_id VARCHAR(255) NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL,
			INDEX idx_workflows_owner (owner_id, created_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS workflow_steps (
			id VARCHAR(64) NOT NULL PRIMARY KEY,
			workflow_id VARCHAR(64) NOT NULL,
			specialization VARCHAR(32) NOT NULL,
			step_order INT NOT NULL,
			status VARCHAR(32) NOT NULL,
			input_data LONGTEXT NOT NULL,
			output_data LONGTEXT NULL,
			execution_time_ms BIGINT NULL,
			error_message TEXT NULL,
			completed_at BIGINT NULL,
			UNIQUE KEY uniq_workflow_order (workflow_id, step_order),
			CONSTRAINT fk_steps_workflow FOREIGN KEY (workflow_id) REFERENCES workflows(id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
