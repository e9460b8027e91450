package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dshills/devflow/flow/store"
)

func newTestSQLiteStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "devflow.db")
	st, err := store.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSQLiteStore_Conformance(t *testing.T) {
	runConformance(t, newTestSQLiteStore(t))
}

// TestSQLiteStore_Reopen verifies state survives closing and reopening the file.
func TestSQLiteStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	st, err := store.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	wf, steps := newFixture("wf-reopen", "owner", time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC))
	if err := st.CreateWorkflow(ctx, wf, steps); err != nil {
		t.Fatalf("CreateWorkflow failed: %v", err)
	}
	if err := st.TransitionWorkflow(ctx, wf.ID, store.WorkflowDraft, store.WorkflowInProgress); err != nil {
		t.Fatalf("TransitionWorkflow failed: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := store.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetWorkflow(ctx, wf.ID)
	if err != nil {
		t.Fatalf("GetWorkflow failed: %v", err)
	}
	if got.Status != store.WorkflowInProgress {
		t.Errorf("expected in_progress, got %s", got.Status)
	}
	if !got.CreatedAt.Equal(wf.CreatedAt) {
		t.Errorf("expected CreatedAt %v, got %v", wf.CreatedAt, got.CreatedAt)
	}
}

func TestSQLiteStore_Closed(t *testing.T) {
	st := newTestSQLiteStore(t)
	if err := st.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
	if _, err := st.GetWorkflow(context.Background(), "x"); err == nil {
		t.Error("expected error using closed store")
	}
}
