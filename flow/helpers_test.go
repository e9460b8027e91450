package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/dshills/devflow/flow/emit"
	"github.com/dshills/devflow/flow/store"
)

// fakeRegistry reports availability from a fixed set of providers.
type fakeRegistry struct {
	mu        sync.Mutex
	available map[ProviderID]bool
	err       error
	calls     int
}

func newFakeRegistry(ids ...ProviderID) *fakeRegistry {
	r := &fakeRegistry{available: make(map[ProviderID]bool)}
	for _, id := range ids {
		r.available[id] = true
	}
	return r
}

func (r *fakeRegistry) IsAvailable(_ context.Context, id ProviderID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return false, r.err
	}
	return r.available[id], nil
}

func (r *fakeRegistry) set(id ProviderID, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.available[id] = ok
}

// fakeInvoker echoes the provider ID and records every call.
type fakeInvoker struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeInvoker) Invoke(_ context.Context, providerID, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, providerID)
	if f.err != nil {
		return "", f.err
	}
	return "suggestions from " + providerID, nil
}

func (f *fakeInvoker) providers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// failingStore wraps a store and fails selected operations.
type failingStore struct {
	store.Store
	mu           sync.Mutex
	createErr    error
	updateErr    error
	failUpdateOn int // fail the Nth UpdateStep call (1-based); 0 disables
	failFrom     bool // with failUpdateOn, also fail every later call
	updates      int

	transitionErr    error
	failTransitionOn int // fail the Nth TransitionWorkflow call; 0 fails all
	transitions      int
}

func (s *failingStore) CreateWorkflow(ctx context.Context, wf store.Workflow, steps []store.Step) error {
	if s.createErr != nil {
		return s.createErr
	}
	return s.Store.CreateWorkflow(ctx, wf, steps)
}

func (s *failingStore) UpdateStep(ctx context.Context, st store.Step) error {
	s.mu.Lock()
	s.updates++
	n := s.updates
	s.mu.Unlock()
	if s.updateErr != nil && (s.failUpdateOn == 0 || n == s.failUpdateOn || (s.failFrom && n > s.failUpdateOn)) {
		return s.updateErr
	}
	return s.Store.UpdateStep(ctx, st)
}

func (s *failingStore) TransitionWorkflow(ctx context.Context, id string, from, to store.WorkflowStatus) error {
	s.mu.Lock()
	s.transitions++
	n := s.transitions
	s.mu.Unlock()
	if s.transitionErr != nil && (s.failTransitionOn == 0 || n == s.failTransitionOn) {
		return s.transitionErr
	}
	return s.Store.TransitionWorkflow(ctx, id, from, to)
}

var allProviders = []ProviderID{ProviderAnthropic, ProviderOpenAI, ProviderGoogle}

const testRequirements = `{"projectType":"web","features":["auth","dashboard"],"complexity":"medium"}`

type engineFixture struct {
	engine   *Engine
	store    *store.MemStore
	registry *fakeRegistry
	invoker  *fakeInvoker
	events   *emit.BufferedEmitter
}

func newEngineFixture(t *testing.T, override map[Specialization]StepExecutor, opts ...Option) *engineFixture {
	t.Helper()

	f := &engineFixture{
		store:    store.NewMemStore(),
		registry: newFakeRegistry(allProviders...),
		invoker:  &fakeInvoker{},
		events:   emit.NewBufferedEmitter(),
	}
	router := NewRouter(f.registry)
	executors := NewExecutors(router, f.invoker)
	for sp, x := range override {
		executors[sp] = x
	}

	seq := 0
	var mu sync.Mutex
	opts = append([]Option{
		WithEmitter(f.events),
		WithIDGenerator(func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("id-%03d", seq)
		}),
	}, opts...)

	engine, err := New(router, f.store, executors, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	f.engine = engine
	return f
}

func (f *engineFixture) create(t *testing.T) Workflow {
	t.Helper()
	wf, err := f.engine.CreateWorkflow(context.Background(), "shop", "online store", json.RawMessage(testRequirements), "owner-1")
	if err != nil {
		t.Fatalf("CreateWorkflow failed: %v", err)
	}
	return wf
}

func (f *engineFixture) steps(t *testing.T, id string) []Step {
	t.Helper()
	steps, err := f.store.ListSteps(context.Background(), id)
	if err != nil {
		t.Fatalf("ListSteps failed: %v", err)
	}
	return steps
}
