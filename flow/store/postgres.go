package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a PostgreSQL implementation of Store backed by a pgx pool.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool and creates the schema if needed.
// The caller owns the pool; Close closes it.
func NewPostgresStore(ctx context.Context, db *pgxpool.Pool) (*PostgresStore, error) {
	st := &PostgresStore{db: db}
	if err := st.createTables(ctx); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return st, nil
}

// OpenPostgresStore connects to the given connection string.
func OpenPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}
	st, err := NewPostgresStore(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return st, nil
}

func (s *PostgresStore) createTables(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS workflows (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			requirements TEXT NOT NULL,
			status TEXT NOT NULL,
			owner_id TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_workflows_owner ON workflows(owner_id, created_at);
		CREATE TABLE IF NOT EXISTS workflow_steps (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL REFERENCES workflows(id),
			specialization TEXT NOT NULL,
			step_order INT NOT NULL,
			status TEXT NOT NULL,
			input_data TEXT NOT NULL,
			output_data TEXT NULL,
			execution_time_ms BIGINT NULL,
			error_message TEXT NULL,
			completed_at BIGINT NULL,
			UNIQUE (workflow_id, step_order)
		);`)
	return err
}

// CreateWorkflow inserts the workflow and its steps in one transaction.
func (s *PostgresStore) CreateWorkflow(ctx context.Context, wf Workflow, steps []Step) error {
	if err := validateCreate(wf, steps); err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO workflows (id, name, description, requirements, status, owner_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		wf.ID, wf.Name, wf.Description, string(wf.Requirements), string(wf.Status), wf.OwnerID,
		utc(wf.CreatedAt).UnixNano(),
	); err != nil {
		return fmt.Errorf("failed to insert workflow: %w", err)
	}

	for _, st := range steps {
		if _, err := tx.Exec(ctx,
			`INSERT INTO workflow_steps (id, workflow_id, specialization, step_order, status, input_data,
			 output_data, execution_time_ms, error_message, completed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			stepArgs(st)...,
		); err != nil {
			return fmt.Errorf("failed to insert step %d: %w", st.Order, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit workflow: %w", err)
	}
	return nil
}

// GetWorkflow loads a single workflow.
func (s *PostgresStore) GetWorkflow(ctx context.Context, id string) (Workflow, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, name, description, requirements, status, owner_id, created_at FROM workflows WHERE id = $1`, id)
	wf, err := scanWorkflow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Workflow{}, ErrNotFound
	}
	if err != nil {
		return Workflow{}, fmt.Errorf("failed to load workflow: %w", err)
	}
	return wf, nil
}

// ListWorkflows returns workflows ordered by creation time.
func (s *PostgresStore) ListWorkflows(ctx context.Context, ownerID string) ([]Workflow, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, description, requirements, status, owner_id, created_at FROM workflows
		 WHERE $1 = '' OR owner_id = $1 ORDER BY created_at ASC, id ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var out []Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		out = append(out, wf)
	}
	return out, rows.Err()
}

// ListSteps returns a workflow's steps ordered by step_order.
func (s *PostgresStore) ListSteps(ctx context.Context, workflowID string) ([]Step, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, workflow_id, specialization, step_order, status, input_data, output_data,
		 execution_time_ms, error_message, completed_at FROM workflow_steps
		 WHERE workflow_id = $1 ORDER BY step_order ASC`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer rows.Close()

	var out []Step
	for rows.Next() {
		var (
			st          Step
			spec        string
			status      string
			input       string
			output      *string
			execMs      *int64
			errMsg      *string
			completedAt *int64
		)
		if err := rows.Scan(&st.ID, &st.WorkflowID, &spec, &st.Order, &status, &input,
			&output, &execMs, &errMsg, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		st.Specialization = Specialization(spec)
		st.Status = StepStatus(status)
		st.InputData = json.RawMessage(input)
		if output != nil {
			st.OutputData = json.RawMessage(*output)
		}
		st.ExecutionTimeMs = execMs
		st.ErrorMessage = errMsg
		if completedAt != nil {
			t := time.Unix(0, *completedAt).UTC()
			st.CompletedAt = &t
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(out) == 0 {
		if err := s.requireWorkflow(ctx, workflowID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// TransitionWorkflow updates the status only when it still equals `from`.
func (s *PostgresStore) TransitionWorkflow(ctx context.Context, id string, from, to WorkflowStatus) error {
	tag, err := s.db.Exec(ctx, `UPDATE workflows SET status = $1 WHERE id = $2 AND status = $3`,
		string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("failed to update workflow status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if err := s.requireWorkflow(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

// UpdateStep writes the mutable step fields.
func (s *PostgresStore) UpdateStep(ctx context.Context, st Step) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE workflow_steps SET status = $1, output_data = $2, execution_time_ms = $3, error_message = $4,
		 completed_at = $5 WHERE id = $6 AND workflow_id = $7`,
		string(st.Status), nullableJSON(st.OutputData), nullableInt(st.ExecutionTimeMs),
		nullableString(st.ErrorMessage), nullableTime(st.CompletedAt), st.ID, st.WorkflowID)
	if err != nil {
		return fmt.Errorf("failed to update step: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the underlying pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func (s *PostgresStore) requireWorkflow(ctx context.Context, id string) error {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM workflows WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check workflow: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}
