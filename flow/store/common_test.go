package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dshills/devflow/flow/store"
)

// newFixture builds a draft workflow with the four pending steps the engine
// would create.
func newFixture(id, owner string, created time.Time) (store.Workflow, []store.Step) {
	req := json.RawMessage(`{"projectType":"web","features":["auth"]}`)
	wf := store.Workflow{
		ID:           id,
		Name:         "workflow " + id,
		Description:  "fixture",
		Requirements: req,
		Status:       store.WorkflowDraft,
		OwnerID:      owner,
		CreatedAt:    created,
	}
	specs := []store.Specialization{store.Design, store.Development, store.Testing, store.Deployment}
	steps := make([]store.Step, len(specs))
	for i, sp := range specs {
		steps[i] = store.Step{
			ID:             fmt.Sprintf("%s-step-%d", id, i+1),
			WorkflowID:     id,
			Specialization: sp,
			Order:          i + 1,
			Status:         store.StepPending,
			InputData:      req,
		}
	}
	return wf, steps
}

// runConformance exercises the Store contract. Every backend test calls it with
// a fresh, empty store.
func runConformance(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("create and read back", func(t *testing.T) {
		wf, steps := newFixture("wf-create", "owner-a", base)
		if err := st.CreateWorkflow(ctx, wf, steps); err != nil {
			t.Fatalf("CreateWorkflow failed: %v", err)
		}

		got, err := st.GetWorkflow(ctx, wf.ID)
		if err != nil {
			t.Fatalf("GetWorkflow failed: %v", err)
		}
		if got.Name != wf.Name || got.Status != store.WorkflowDraft || got.OwnerID != "owner-a" {
			t.Errorf("unexpected workflow: %+v", got)
		}
		if !got.CreatedAt.Equal(base) {
			t.Errorf("expected CreatedAt %v, got %v", base, got.CreatedAt)
		}
		if string(got.Requirements) != string(wf.Requirements) {
			t.Errorf("expected requirements %s, got %s", wf.Requirements, got.Requirements)
		}

		loaded, err := st.ListSteps(ctx, wf.ID)
		if err != nil {
			t.Fatalf("ListSteps failed: %v", err)
		}
		if len(loaded) != 4 {
			t.Fatalf("expected 4 steps, got %d", len(loaded))
		}
		for i, s := range loaded {
			if s.Order != i+1 {
				t.Errorf("step %d: expected order %d, got %d", i, i+1, s.Order)
			}
			if s.Status != store.StepPending {
				t.Errorf("step %d: expected pending, got %s", i, s.Status)
			}
			if s.OutputData != nil || s.ExecutionTimeMs != nil || s.ErrorMessage != nil || s.CompletedAt != nil {
				t.Errorf("step %d: expected nil result fields, got %+v", i, s)
			}
		}
		if loaded[0].Specialization != store.Design || loaded[3].Specialization != store.Deployment {
			t.Errorf("unexpected specialization order: %s..%s", loaded[0].Specialization, loaded[3].Specialization)
		}
	})

	t.Run("missing workflow", func(t *testing.T) {
		if _, err := st.GetWorkflow(ctx, "does-not-exist"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("GetWorkflow: expected ErrNotFound, got %v", err)
		}
		if _, err := st.ListSteps(ctx, "does-not-exist"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("ListSteps: expected ErrNotFound, got %v", err)
		}
		err := st.TransitionWorkflow(ctx, "does-not-exist", store.WorkflowDraft, store.WorkflowInProgress)
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("TransitionWorkflow: expected ErrNotFound, got %v", err)
		}
	})

	t.Run("duplicate workflow is rejected atomically", func(t *testing.T) {
		wf, steps := newFixture("wf-dup", "owner-a", base.Add(time.Second))
		if err := st.CreateWorkflow(ctx, wf, steps); err != nil {
			t.Fatalf("CreateWorkflow failed: %v", err)
		}
		wf.Name = "changed"
		if err := st.CreateWorkflow(ctx, wf, steps); err == nil {
			t.Fatal("expected error creating duplicate workflow")
		}
		got, err := st.GetWorkflow(ctx, wf.ID)
		if err != nil {
			t.Fatalf("GetWorkflow failed: %v", err)
		}
		if got.Name == "changed" {
			t.Error("duplicate create overwrote the stored workflow")
		}
		loaded, _ := st.ListSteps(ctx, wf.ID)
		if len(loaded) != 4 {
			t.Errorf("expected 4 steps after rejected duplicate, got %d", len(loaded))
		}
	})

	t.Run("compare and set transition", func(t *testing.T) {
		wf, steps := newFixture("wf-cas", "owner-b", base.Add(2*time.Second))
		if err := st.CreateWorkflow(ctx, wf, steps); err != nil {
			t.Fatalf("CreateWorkflow failed: %v", err)
		}
		if err := st.TransitionWorkflow(ctx, wf.ID, store.WorkflowDraft, store.WorkflowInProgress); err != nil {
			t.Fatalf("first transition failed: %v", err)
		}
		err := st.TransitionWorkflow(ctx, wf.ID, store.WorkflowDraft, store.WorkflowInProgress)
		if !errors.Is(err, store.ErrConflict) {
			t.Errorf("expected ErrConflict on stale transition, got %v", err)
		}
		got, _ := st.GetWorkflow(ctx, wf.ID)
		if got.Status != store.WorkflowInProgress {
			t.Errorf("expected in_progress, got %s", got.Status)
		}
	})

	t.Run("concurrent claims have one winner", func(t *testing.T) {
		wf, steps := newFixture("wf-race", "owner-b", base.Add(3*time.Second))
		if err := st.CreateWorkflow(ctx, wf, steps); err != nil {
			t.Fatalf("CreateWorkflow failed: %v", err)
		}

		var wins, conflicts int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := st.TransitionWorkflow(ctx, wf.ID, store.WorkflowDraft, store.WorkflowInProgress)
				switch {
				case err == nil:
					atomic.AddInt32(&wins, 1)
				case errors.Is(err, store.ErrConflict):
					atomic.AddInt32(&conflicts, 1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()
		if wins != 1 {
			t.Errorf("expected exactly 1 winner, got %d (conflicts=%d)", wins, conflicts)
		}
	})

	t.Run("update step fields", func(t *testing.T) {
		wf, steps := newFixture("wf-update", "owner-c", base.Add(4*time.Second))
		if err := st.CreateWorkflow(ctx, wf, steps); err != nil {
			t.Fatalf("CreateWorkflow failed: %v", err)
		}

		done := base.Add(time.Minute)
		ms := int64(42)
		s := steps[0]
		s.Status = store.StepCompleted
		s.OutputData = json.RawMessage(`{"ok":true}`)
		s.ExecutionTimeMs = &ms
		s.CompletedAt = &done
		if err := st.UpdateStep(ctx, s); err != nil {
			t.Fatalf("UpdateStep failed: %v", err)
		}

		msg := "boom"
		f := steps[1]
		f.Status = store.StepFailed
		f.ErrorMessage = &msg
		if err := st.UpdateStep(ctx, f); err != nil {
			t.Fatalf("UpdateStep failed: %v", err)
		}

		loaded, err := st.ListSteps(ctx, wf.ID)
		if err != nil {
			t.Fatalf("ListSteps failed: %v", err)
		}
		if loaded[0].Status != store.StepCompleted || string(loaded[0].OutputData) != `{"ok":true}` {
			t.Errorf("unexpected step 1: %+v", loaded[0])
		}
		if loaded[0].ExecutionTimeMs == nil || *loaded[0].ExecutionTimeMs != 42 {
			t.Errorf("expected executionTimeMs 42, got %v", loaded[0].ExecutionTimeMs)
		}
		if loaded[0].CompletedAt == nil || !loaded[0].CompletedAt.Equal(done) {
			t.Errorf("expected completedAt %v, got %v", done, loaded[0].CompletedAt)
		}
		if loaded[1].Status != store.StepFailed || loaded[1].ErrorMessage == nil || *loaded[1].ErrorMessage != "boom" {
			t.Errorf("unexpected step 2: %+v", loaded[1])
		}
		if loaded[2].Status != store.StepPending || loaded[3].Status != store.StepPending {
			t.Error("untouched steps should remain pending")
		}

		missing := s
		missing.ID = "no-such-step"
		if err := st.UpdateStep(ctx, missing); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound for unknown step, got %v", err)
		}
	})

	t.Run("list by owner", func(t *testing.T) {
		all, err := st.ListWorkflows(ctx, "")
		if err != nil {
			t.Fatalf("ListWorkflows failed: %v", err)
		}
		if len(all) < 5 {
			t.Errorf("expected at least 5 workflows, got %d", len(all))
		}
		for i := 1; i < len(all); i++ {
			if all[i].CreatedAt.Before(all[i-1].CreatedAt) {
				t.Errorf("workflows not ordered by creation time at index %d", i)
			}
		}

		owned, err := st.ListWorkflows(ctx, "owner-b")
		if err != nil {
			t.Fatalf("ListWorkflows failed: %v", err)
		}
		if len(owned) != 2 {
			t.Errorf("expected 2 workflows for owner-b, got %d", len(owned))
		}
		for _, wf := range owned {
			if wf.OwnerID != "owner-b" {
				t.Errorf("unexpected owner %q", wf.OwnerID)
			}
		}
	})
}
