package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory implementation of Store.
//
// Designed for:
//   - Testing and development
//   - Hosts that embed the engine without durable persistence
//
// MemStore is thread-safe. Records are copied on the way in and out so callers
// can never mutate stored state by accident.
type MemStore struct {
	mu        sync.RWMutex
	workflows map[string]Workflow
	steps     map[string][]Step // workflowID -> steps
	order     []string          // workflow IDs in insertion order
}

// NewMemStore creates a new in-memory store.
//
// Example:
//
//	st := store.NewMemStore()
//	engine, err := flow.New(router, st, executors)
func NewMemStore() *MemStore {
	return &MemStore{
		workflows: make(map[string]Workflow),
		steps:     make(map[string][]Step),
	}
}

// CreateWorkflow stores a workflow and its steps under a single lock.
func (m *MemStore) CreateWorkflow(_ context.Context, wf Workflow, steps []Step) error {
	if err := validateCreate(wf, steps); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.workflows[wf.ID]; exists {
		return fmt.Errorf("workflow %s already exists", wf.ID)
	}

	m.workflows[wf.ID] = copyWorkflow(wf)
	stored := make([]Step, len(steps))
	for i, s := range steps {
		stored[i] = copyStep(s)
	}
	m.steps[wf.ID] = stored
	m.order = append(m.order, wf.ID)
	return nil
}

// GetWorkflow returns a copy of the workflow.
func (m *MemStore) GetWorkflow(_ context.Context, id string) (Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wf, ok := m.workflows[id]
	if !ok {
		return Workflow{}, ErrNotFound
	}
	return copyWorkflow(wf), nil
}

// ListWorkflows returns workflows in creation order.
func (m *MemStore) ListWorkflows(_ context.Context, ownerID string) ([]Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Workflow, 0, len(m.order))
	for _, id := range m.order {
		wf := m.workflows[id]
		if ownerID != "" && wf.OwnerID != ownerID {
			continue
		}
		out = append(out, copyWorkflow(wf))
	}
	return out, nil
}

// ListSteps returns the workflow's steps ordered by Order.
func (m *MemStore) ListSteps(_ context.Context, workflowID string) ([]Step, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.workflows[workflowID]; !ok {
		return nil, ErrNotFound
	}

	stored := m.steps[workflowID]
	out := make([]Step, len(stored))
	for i, s := range stored {
		out[i] = copyStep(s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

// TransitionWorkflow performs a compare-and-set on the workflow status.
func (m *MemStore) TransitionWorkflow(_ context.Context, id string, from, to WorkflowStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	wf, ok := m.workflows[id]
	if !ok {
		return ErrNotFound
	}
	if wf.Status != from {
		return ErrConflict
	}
	wf.Status = to
	m.workflows[id] = wf
	return nil
}

// UpdateStep replaces the mutable fields of an existing step.
func (m *MemStore) UpdateStep(_ context.Context, step Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.steps[step.WorkflowID]
	if !ok {
		return ErrNotFound
	}
	for i := range stored {
		if stored[i].ID != step.ID {
			continue
		}
		updated := copyStep(step)
		// Identity fields are immutable.
		updated.WorkflowID = stored[i].WorkflowID
		updated.Specialization = stored[i].Specialization
		updated.Order = stored[i].Order
		updated.InputData = stored[i].InputData
		stored[i] = updated
		return nil
	}
	return ErrNotFound
}

// Close is a no-op for MemStore.
func (m *MemStore) Close() error {
	return nil
}

func copyWorkflow(wf Workflow) Workflow {
	wf.Requirements = copyRaw(wf.Requirements)
	return wf
}

func copyStep(s Step) Step {
	s.InputData = copyRaw(s.InputData)
	s.OutputData = copyRaw(s.OutputData)
	if s.ExecutionTimeMs != nil {
		v := *s.ExecutionTimeMs
		s.ExecutionTimeMs = &v
	}
	if s.ErrorMessage != nil {
		v := *s.ErrorMessage
		s.ErrorMessage = &v
	}
	if s.CompletedAt != nil {
		v := *s.CompletedAt
		s.CompletedAt = &v
	}
	return s
}

func copyRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}

// utc normalizes timestamps before they are written to a database.
func utc(t time.Time) time.Time {
	return t.UTC()
}
