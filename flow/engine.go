package flow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/devflow/flow/emit"
	"github.com/dshills/devflow/flow/store"
)

// Engine creates workflows and drives them through their four steps.
//
// Steps run one at a time in Order; each is fully recorded before the next
// starts. An execution first claims the workflow with a compare-and-set
// draft → in_progress transition in the store, so two engines sharing a store
// never advance the same workflow.
//
// Nothing is retried. A failed step leaves the workflow failed with the step's
// error message recorded and earlier outputs intact.
type Engine struct {
	router    *Router
	store     store.Store
	executors Executors

	logger      *slog.Logger
	emitter     emit.Emitter
	metrics     *PrometheusMetrics
	stepTimeout time.Duration
	now         func() time.Time
	newID       func() string
}

// New creates an Engine.
//
// router, st and executors are required; executors must cover every stage.
func New(router *Router, st store.Store, executors Executors, opts ...Option) (*Engine, error) {
	if router == nil {
		return nil, &Error{Code: CodeConfiguration, Message: "router is required"}
	}
	if st == nil {
		return nil, &Error{Code: CodeConfiguration, Message: "store is required"}
	}
	if err := executors.Validate(); err != nil {
		return nil, &Error{Code: CodeConfiguration, Message: "invalid executors", Cause: err}
	}

	cfg := engineConfig{
		logger:      slog.Default(),
		emitter:     emit.NewNullEmitter(),
		stepTimeout: DefaultStepTimeout,
		now:         time.Now,
		newID:       func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, &Error{Code: CodeConfiguration, Message: "invalid option", Cause: err}
		}
	}
	if cfg.emitter == nil {
		cfg.emitter = emit.NewNullEmitter()
	}

	return &Engine{
		router:      router,
		store:       st,
		executors:   executors,
		logger:      cfg.logger,
		emitter:     cfg.emitter,
		metrics:     cfg.metrics,
		stepTimeout: cfg.stepTimeout,
		now:         cfg.now,
		newID:       cfg.newID,
	}, nil
}

// CreateWorkflow validates the input, checks that workflow orchestration is
// routable and persists a draft workflow with its four pending steps in one
// atomic write.
//
// Any failure returns before the store is touched. An unroutable
// orchestration category returns a CONFIGURATION error wrapping the router
// error. Empty requirements default to {}.
func (e *Engine) CreateWorkflow(ctx context.Context, name, description string, requirements json.RawMessage, ownerID string) (Workflow, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Workflow{}, &Error{Code: CodeConfiguration, Message: "workflow name cannot be empty"}
	}
	requirements = bytes.TrimSpace(requirements)
	if len(requirements) == 0 {
		requirements = json.RawMessage(`{}`)
	}
	if _, err := ParseRequirements(requirements); err != nil {
		return Workflow{}, &Error{Code: CodeConfiguration, Message: "invalid requirements", Cause: err}
	}

	res, err := e.router.Resolve(ctx, CategoryWorkflowOrchestration)
	if err != nil {
		return Workflow{}, &Error{
			Code:     CodeConfiguration,
			Message:  "workflow orchestration has no available provider",
			Category: CategoryWorkflowOrchestration,
			Cause:    err,
		}
	}

	wf := Workflow{
		ID:           e.newID(),
		Name:         name,
		Description:  description,
		Requirements: append(json.RawMessage(nil), requirements...),
		Status:       store.WorkflowDraft,
		OwnerID:      ownerID,
		CreatedAt:    e.now().UTC(),
	}
	steps := make([]Step, len(specializations))
	for i, sp := range specializations {
		steps[i] = Step{
			ID:             e.newID(),
			WorkflowID:     wf.ID,
			Specialization: sp,
			Order:          i + 1,
			Status:         store.StepPending,
			InputData:      wf.Requirements,
		}
	}

	if err := e.store.CreateWorkflow(ctx, wf, steps); err != nil {
		return Workflow{}, persistenceError("failed to create workflow", err)
	}

	e.logger.Info("workflow created",
		slog.String("workflow_id", wf.ID),
		slog.String("orchestrator", string(res.Chosen.ID)),
		slog.Bool("used_fallback", res.UsedFallback))
	e.emitter.Emit(emit.Event{
		WorkflowID: wf.ID,
		Msg:        emit.MsgWorkflowCreated,
		Meta: map[string]interface{}{
			"orchestrator":  string(res.Chosen.ID),
			"used_fallback": res.UsedFallback,
		},
	})
	return wf, nil
}

// ExecuteWorkflow runs a draft workflow to completion or first failure.
//
// Only draft workflows are runnable; any other status returns INVALID_STATE.
// Losing the claim to a concurrent caller returns CONCURRENT_EXECUTION and
// changes nothing.
//
// ctx is checked between steps only. Once a step has started it runs to
// completion (bounded by the step timeout) and its result is recorded even if
// ctx is canceled meanwhile. A cancellation seen before a step starts marks
// that step failed with "execution canceled".
//
// The returned workflow reflects the stored status. On failure the error is
// the failing step's error, joined with a PERSISTENCE error when the failure
// or the final status could not be written; in that case the workflow stays
// in_progress.
func (e *Engine) ExecuteWorkflow(ctx context.Context, id string) (Workflow, error) {
	if err := ctx.Err(); err != nil {
		return Workflow{}, err
	}
	wctx := context.WithoutCancel(ctx)

	wf, err := e.store.GetWorkflow(wctx, id)
	if err != nil {
		return Workflow{}, persistenceError("failed to load workflow", err)
	}
	if wf.Status != store.WorkflowDraft {
		return wf, &Error{
			Code:    CodeInvalidState,
			Message: fmt.Sprintf("workflow %s is %s; only draft workflows can be executed", id, wf.Status),
		}
	}

	if err := e.store.TransitionWorkflow(wctx, id, store.WorkflowDraft, store.WorkflowInProgress); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return wf, &Error{
				Code:    CodeConcurrentExecution,
				Message: fmt.Sprintf("workflow %s is already being executed", id),
				Cause:   err,
			}
		}
		return wf, persistenceError("failed to claim workflow", err)
	}
	wf.Status = store.WorkflowInProgress

	e.metrics.addInflight(1)
	defer e.metrics.addInflight(-1)

	log := e.logger.With(slog.String("workflow_id", id))
	log.Info("workflow started")
	e.emitter.Emit(emit.Event{WorkflowID: id, Msg: emit.MsgWorkflowStart})

	steps, err := e.store.ListSteps(wctx, id)
	var runErr error
	if err != nil {
		runErr = persistenceError("failed to load steps", err)
	} else if len(steps) != len(specializations) {
		runErr = &Error{
			Code:    CodeStepExecution,
			Message: fmt.Sprintf("workflow %s has %d steps, want %d", id, len(steps), len(specializations)),
		}
	} else {
		runErr = e.run(ctx, wctx, wf, steps)
	}

	final := store.WorkflowFailed
	if runErr == nil {
		final = DeriveStatus(steps)
		if final != store.WorkflowCompleted {
			final = store.WorkflowFailed
		}
	}

	if err := e.store.TransitionWorkflow(wctx, id, store.WorkflowInProgress, final); err != nil {
		perr := persistenceError("failed to finalize workflow", err)
		log.Error("failed to finalize workflow", slog.String("status", string(final)), slog.Any("error", perr))
		runErr = errors.Join(runErr, perr)
	} else {
		wf.Status = final
		e.metrics.RecordWorkflow(final)
	}

	if runErr != nil {
		log.Error("workflow failed", slog.Any("error", runErr))
		e.emitter.Emit(emit.Event{WorkflowID: id, Msg: emit.MsgWorkflowFailed,
			Meta: map[string]interface{}{"error": runErr.Error()}})
		return wf, runErr
	}

	log.Info("workflow completed")
	e.emitter.Emit(emit.Event{WorkflowID: id, Msg: emit.MsgWorkflowComplete})
	return wf, nil
}

// run is the step loop. steps is updated in place with each step's recorded
// state.
func (e *Engine) run(ctx, wctx context.Context, wf Workflow, steps []Step) error {
	for i := range steps {
		if steps[i].Status == store.StepCompleted {
			continue
		}
		if err := ctx.Err(); err != nil {
			cause := stepError(CodeStepExecution, steps[i].ID, "execution canceled", err)
			res := e.recordFailure(wctx, steps[i], cause, nil)
			steps[i] = res.step
			return res.err
		}

		res := e.advance(wctx, wf, steps[i])
		steps[i] = res.step
		if res.err != nil {
			return res.err
		}
	}
	return nil
}

// Workflow returns the stored workflow.
func (e *Engine) Workflow(ctx context.Context, id string) (Workflow, error) {
	wf, err := e.store.GetWorkflow(ctx, id)
	if err != nil {
		return Workflow{}, persistenceError("failed to load workflow", err)
	}
	return wf, nil
}

// Steps returns the workflow's steps ordered by Order.
func (e *Engine) Steps(ctx context.Context, id string) ([]Step, error) {
	steps, err := e.store.ListSteps(ctx, id)
	if err != nil {
		return nil, persistenceError("failed to load steps", err)
	}
	return steps, nil
}

// ListWorkflows returns workflows ordered by creation time. An empty ownerID
// lists all of them.
func (e *Engine) ListWorkflows(ctx context.Context, ownerID string) ([]Workflow, error) {
	wfs, err := e.store.ListWorkflows(ctx, ownerID)
	if err != nil {
		return nil, persistenceError("failed to list workflows", err)
	}
	return wfs, nil
}

// Router returns the router the engine resolves categories with.
func (e *Engine) Router() *Router {
	return e.router
}
