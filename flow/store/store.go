// Package store provides persistence for workflows and their steps.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested workflow ID does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned by TransitionWorkflow when the workflow is not in the
// expected status. It means another writer already advanced the workflow.
var ErrConflict = errors.New("status conflict")

// WorkflowStatus is the lifecycle status of a Workflow.
type WorkflowStatus string

// Workflow statuses.
const (
	WorkflowDraft      WorkflowStatus = "draft"
	WorkflowInProgress WorkflowStatus = "in_progress"
	WorkflowCompleted  WorkflowStatus = "completed"
	WorkflowFailed     WorkflowStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s WorkflowStatus) IsTerminal() bool {
	return s == WorkflowCompleted || s == WorkflowFailed
}

// StepStatus is the lifecycle status of a Step.
type StepStatus string

// Step statuses.
const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

// IsTerminal reports whether the step has finished, successfully or not.
func (s StepStatus) IsTerminal() bool {
	return s == StepCompleted || s == StepFailed
}

// Specialization identifies one of the four fixed workflow stages.
type Specialization string

// Workflow stages in execution order.
const (
	Design      Specialization = "design"
	Development Specialization = "development"
	Testing     Specialization = "testing"
	Deployment  Specialization = "deployment"
)

// Workflow is a persisted multi-stage workflow.
type Workflow struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Requirements json.RawMessage `json:"requirements"`
	Status       WorkflowStatus  `json:"status"`
	OwnerID      string          `json:"owner_id"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Step is one stage of a workflow's execution.
//
// OutputData, ExecutionTimeMs, ErrorMessage and CompletedAt are nil until the
// step finishes.
type Step struct {
	ID              string          `json:"id"`
	WorkflowID      string          `json:"workflow_id"`
	Specialization  Specialization  `json:"specialization"`
	Order           int             `json:"order"`
	Status          StepStatus      `json:"status"`
	InputData       json.RawMessage `json:"input_data"`
	OutputData      json.RawMessage `json:"output_data"`
	ExecutionTimeMs *int64          `json:"execution_time_ms"`
	ErrorMessage    *string         `json:"error_message"`
	CompletedAt     *time.Time      `json:"completed_at"`
}

// Store persists workflows and steps.
//
// Implementations must make CreateWorkflow atomic (the workflow and all of its
// steps are written, or nothing is) and TransitionWorkflow a single
// compare-and-set write.
//
// Implementations:
//   - MemStore: in-memory, for tests and embedding
//   - SQLiteStore: single-file database (modernc.org/sqlite)
//   - MySQLStore: MySQL/MariaDB (go-sql-driver/mysql)
//   - PostgresStore: PostgreSQL (pgx)
type Store interface {
	// CreateWorkflow persists a workflow together with its steps.
	CreateWorkflow(ctx context.Context, wf Workflow, steps []Step) error

	// GetWorkflow returns the workflow with the given ID or ErrNotFound.
	GetWorkflow(ctx context.Context, id string) (Workflow, error)

	// ListWorkflows returns workflows ordered by creation time. An empty
	// ownerID lists every workflow.
	ListWorkflows(ctx context.Context, ownerID string) ([]Workflow, error)

	// ListSteps returns the steps of a workflow ordered by Order ascending.
	ListSteps(ctx context.Context, workflowID string) ([]Step, error)

	// TransitionWorkflow sets the workflow status to `to` only if it is
	// currently `from`. Returns ErrConflict when the current status differs
	// and ErrNotFound when the workflow does not exist.
	TransitionWorkflow(ctx context.Context, id string, from, to WorkflowStatus) error

	// UpdateStep overwrites the mutable fields of a step (status, output,
	// timing, error, completion time).
	UpdateStep(ctx context.Context, step Step) error

	// Close releases resources held by the store.
	Close() error
}

func validateCreate(wf Workflow, steps []Step) error {
	if wf.ID == "" {
		return errors.New("workflow ID cannot be empty")
	}
	for _, s := range steps {
		if s.WorkflowID != wf.ID {
			return errors.New("step " + s.ID + " does not belong to workflow " + wf.ID)
		}
	}
	return nil
}

// nullableJSON returns nil for an empty payload so it is stored as NULL.
func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
