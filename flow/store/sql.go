package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// sqlStore implements Store over database/sql for drivers that use `?`
// placeholders (SQLite and MySQL). Dialect differences are limited to the
// schema, which the concrete stores create before handing the DB over.
//
// Timestamps are stored as UTC Unix nanoseconds so that every driver round-trips
// them identically without DSN-specific parsing options.
type sqlStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

const (
	insertWorkflowSQL = `INSERT INTO workflows (id, name, description, requirements, status, owner_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	insertStepSQL = `INSERT INTO workflow_steps (id, workflow_id, specialization, step_order, status, input_data,
		output_data, execution_time_ms, error_message, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	selectWorkflowSQL = `SELECT id, name, description, requirements, status, owner_id, created_at FROM workflows`
	selectStepsSQL    = `SELECT id, workflow_id, specialization, step_order, status, input_data, output_data,
		execution_time_ms, error_message, completed_at FROM workflow_steps WHERE workflow_id = ? ORDER BY step_order ASC`
)

func (s *sqlStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.New("store is closed")
	}
	return nil
}

// CreateWorkflow inserts the workflow and its steps in one transaction.
func (s *sqlStore) CreateWorkflow(ctx context.Context, wf Workflow, steps []Step) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := validateCreate(wf, steps); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, insertWorkflowSQL,
		wf.ID, wf.Name, wf.Description, string(wf.Requirements), string(wf.Status), wf.OwnerID,
		utc(wf.CreatedAt).UnixNano(),
	); err != nil {
		return fmt.Errorf("failed to insert workflow: %w", err)
	}

	for _, st := range steps {
		if _, err := tx.ExecContext(ctx, insertStepSQL, stepArgs(st)...); err != nil {
			return fmt.Errorf("failed to insert step %d: %w", st.Order, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit workflow: %w", err)
	}
	return nil
}

// GetWorkflow loads a single workflow.
func (s *sqlStore) GetWorkflow(ctx context.Context, id string) (Workflow, error) {
	if err := s.checkOpen(); err != nil {
		return Workflow{}, err
	}

	row := s.db.QueryRowContext(ctx, selectWorkflowSQL+" WHERE id = ?", id)
	wf, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Workflow{}, ErrNotFound
	}
	if err != nil {
		return Workflow{}, fmt.Errorf("failed to load workflow: %w", err)
	}
	return wf, nil
}

// ListWorkflows returns workflows ordered by creation time.
func (s *sqlStore) ListWorkflows(ctx context.Context, ownerID string) ([]Workflow, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var (
		rows *sql.Rows
		err  error
	)
	if ownerID == "" {
		rows, err = s.db.QueryContext(ctx, selectWorkflowSQL+" ORDER BY created_at ASC, id ASC")
	} else {
		rows, err = s.db.QueryContext(ctx, selectWorkflowSQL+" WHERE owner_id = ? ORDER BY created_at ASC, id ASC", ownerID)
	}
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
func (s *sqlStore) ListSteps(ctx context.Context, workflowID string) ([]Step, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, selectStepsSQL, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer rows.Close()

	var out []Step
	for rows.Next() {
		st, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
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
func (s *sqlStore) TransitionWorkflow(ctx context.Context, id string, from, to WorkflowStatus) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE workflows SET status = ? WHERE id = ? AND status = ?",
		string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("failed to update workflow status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		if err := s.requireWorkflow(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

// UpdateStep writes the mutable step fields.
func (s *sqlStore) UpdateStep(ctx context.Context, st Step) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE workflow_steps SET status = ?, output_data = ?, execution_time_ms = ?, error_message = ?, completed_at = ?
		 WHERE id = ? AND workflow_id = ?`,
		string(st.Status), nullableJSON(st.OutputData), nullableInt(st.ExecutionTimeMs),
		nullableString(st.ErrorMessage), nullableTime(st.CompletedAt), st.ID, st.WorkflowID)
	if err != nil {
		return fmt.Errorf("failed to update step: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		// MySQL reports zero affected rows when values are unchanged.
		var count int
		if err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM workflow_steps WHERE id = ? AND workflow_id = ?", st.ID, st.WorkflowID,
		).Scan(&count); err != nil {
			return fmt.Errorf("failed to check step: %w", err)
		}
		if count == 0 {
			return ErrNotFound
		}
	}
	return nil
}

// Ping verifies the database connection is alive.
func (s *sqlStore) Ping(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// Close closes the database connection. Subsequent calls are no-ops.
func (s *sqlStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *sqlStore) requireWorkflow(ctx context.Context, id string) error {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM workflows WHERE id = ?", id).Scan(&count); err != nil {
		return fmt.Errorf("failed to check workflow: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWorkflow(r rowScanner) (Workflow, error) {
	var (
		wf           Workflow
		requirements string
		status       string
		createdAt    int64
	)
	if err := r.Scan(&wf.ID, &wf.Name, &wf.Description, &requirements, &status, &wf.OwnerID, &createdAt); err != nil {
		return Workflow{}, err
	}
	wf.Requirements = json.RawMessage(requirements)
	wf.Status = WorkflowStatus(status)
	wf.CreatedAt = time.Unix(0, createdAt).UTC()
	return wf, nil
}

func scanStep(r rowScanner) (Step, error) {
	var (
		st          Step
		spec        string
		status      string
		input       string
		output      sql.NullString
		execMs      sql.NullInt64
		errMsg      sql.NullString
		completedAt sql.NullInt64
	)
	if err := r.Scan(&st.ID, &st.WorkflowID, &spec, &st.Order, &status, &input,
		&output, &execMs, &errMsg, &completedAt); err != nil {
		return Step{}, err
	}
	st.Specialization = Specialization(spec)
	st.Status = StepStatus(status)
	st.InputData = json.RawMessage(input)
	applyNullables(&st, output, execMs, errMsg, completedAt)
	return st, nil
}

func applyNullables(st *Step, output sql.NullString, execMs sql.NullInt64, errMsg sql.NullString, completedAt sql.NullInt64) {
	if output.Valid {
		st.OutputData = json.RawMessage(output.String)
	}
	if execMs.Valid {
		v := execMs.Int64
		st.ExecutionTimeMs = &v
	}
	if errMsg.Valid {
		v := errMsg.String
		st.ErrorMessage = &v
	}
	if completedAt.Valid {
		v := time.Unix(0, completedAt.Int64).UTC()
		st.CompletedAt = &v
	}
}

func stepArgs(st Step) []interface{} {
	return []interface{}{
		st.ID, st.WorkflowID, string(st.Specialization), st.Order, string(st.Status), string(st.InputData),
		nullableJSON(st.OutputData), nullableInt(st.ExecutionTimeMs), nullableString(st.ErrorMessage),
		nullableTime(st.CompletedAt),
	}
}

func nullableInt(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(v *time.Time) interface{} {
	if v == nil {
		return nil
	}
	return utc(*v).UnixNano()
}
