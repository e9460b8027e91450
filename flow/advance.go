package flow

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/dshills/devflow/flow/emit"
	"github.com/dshills/devflow/flow/store"
)

// stepResult is the recorded outcome of one step transition.
type stepResult struct {
	step Step
	err  error
}

// advance moves one pending step through in_progress to completed or failed,
// persisting each transition. ctx must not be cancelable; see ExecuteWorkflow.
func (e *Engine) advance(ctx context.Context, wf Workflow, step Step) stepResult {
	exec := e.executors[step.Specialization]
	if exec == nil {
		err := stepError(CodeStepExecution, step.ID, "no executor for "+string(step.Specialization), nil)
		return e.recordFailure(ctx, step, err, nil)
	}

	step.Status = store.StepInProgress
	if err := e.store.UpdateStep(ctx, step); err != nil {
		perr := persistenceError("failed to mark step in progress", err)
		perr.StepID = step.ID
		return e.recordFailure(ctx, step, perr, nil)
	}

	e.emitter.Emit(emit.Event{
		WorkflowID:     wf.ID,
		Step:           step.Order,
		Specialization: string(step.Specialization),
		Msg:            emit.MsgStepStart,
	})

	start := time.Now()
	out, err := e.executeWithTimeout(ctx, exec, step)
	elapsed := time.Since(start)
	ms := elapsed.Milliseconds()

	if err == nil {
		out, err = normalizeOutput(step, out)
	}
	if err != nil {
		ferr := asStepError(step, err)
		status := "failed"
		if ferr.Code == CodeStepTimeout {
			status = "timeout"
		}
		e.metrics.RecordStepLatency(step.Specialization, elapsed, status)
		return e.recordFailure(ctx, step, ferr, &ms)
	}

	completedAt := e.now().UTC()
	step.Status = store.StepCompleted
	step.OutputData = out
	step.ExecutionTimeMs = &ms
	step.CompletedAt = &completedAt
	step.ErrorMessage = nil
	if err := e.store.UpdateStep(ctx, step); err != nil {
		perr := persistenceError("failed to record step output", err)
		perr.StepID = step.ID
		return e.recordFailure(ctx, step, perr, &ms)
	}
	e.metrics.RecordStepLatency(step.Specialization, elapsed, "completed")

	meta := map[string]interface{}{"duration_ms": ms}
	var enh Enhancement
	if json.Unmarshal(out, &enh) == nil && enh.EnhancedBy.Provider != "" {
		meta["provider"] = string(enh.EnhancedBy.Provider)
		meta["used_fallback"] = enh.EnhancedBy.UsedFallback
		e.emitter.Emit(emit.Event{
			WorkflowID:     wf.ID,
			Step:           step.Order,
			Specialization: string(step.Specialization),
			Msg:            emit.MsgRouteResolved,
			Meta: map[string]interface{}{
				"category":      string(enh.EnhancedBy.Category),
				"provider":      string(enh.EnhancedBy.Provider),
				"used_fallback": enh.EnhancedBy.UsedFallback,
			},
		})
	}
	e.logger.Info("step completed",
		slog.String("workflow_id", wf.ID),
		slog.Int("order", step.Order),
		slog.String("specialization", string(step.Specialization)),
		slog.Int64("duration_ms", ms))
	e.emitter.Emit(emit.Event{
		WorkflowID:     wf.ID,
		Step:           step.Order,
		Specialization: string(step.Specialization),
		Msg:            emit.MsgStepComplete,
		Meta:           meta,
	})
	return stepResult{step: step}
}

// recordFailure marks step failed with err's message and persists it. If the
// write itself fails the returned step still reads failed so the workflow's
// derived status is failed, and the result's error joins err with a
// PERSISTENCE error for the lost write.
func (e *Engine) recordFailure(ctx context.Context, step Step, err error, ms *int64) stepResult {
	msg := err.Error()
	step.Status = store.StepFailed
	step.ErrorMessage = &msg
	step.ExecutionTimeMs = ms
	step.OutputData = nil
	step.CompletedAt = nil

	res := stepResult{step: step, err: err}
	if werr := e.store.UpdateStep(ctx, step); werr != nil {
		e.logger.Error("failed to record step failure",
			slog.String("workflow_id", step.WorkflowID),
			slog.String("step_id", step.ID),
			slog.Any("error", werr))
		perr := persistenceError("failed to record step failure", werr)
		perr.StepID = step.ID
		res.err = errors.Join(err, perr)
	}

	e.logger.Warn("step failed",
		slog.String("workflow_id", step.WorkflowID),
		slog.Int("order", step.Order),
		slog.String("specialization", string(step.Specialization)),
		slog.String("error", msg))
	e.emitter.Emit(emit.Event{
		WorkflowID:     step.WorkflowID,
		Step:           step.Order,
		Specialization: string(step.Specialization),
		Msg:            emit.MsgStepFailed,
		Meta:           map[string]interface{}{"error": msg},
	})
	return res
}

// normalizeOutput rejects payloads that are not valid JSON and replaces an
// empty payload with {} so completed steps never have null output.
func normalizeOutput(step Step, out json.RawMessage) (json.RawMessage, error) {
	if len(out) == 0 || string(out) == "null" {
		return json.RawMessage(`{}`), nil
	}
	if !json.Valid(out) {
		return nil, stepError(CodeStepExecution, step.ID, "executor returned invalid JSON", nil)
	}
	return out, nil
}

// asStepError returns err as an *Error tagged with the step ID. Errors that are
// not *Error become STEP_EXECUTION.
func asStepError(step Step, err error) *Error {
	var fe *Error
	if errors.As(err, &fe) {
		if fe.StepID == step.ID {
			return fe
		}
		tagged := *fe
		tagged.StepID = step.ID
		return &tagged
	}
	return stepError(CodeStepExecution, step.ID, string(step.Specialization)+" step failed", err)
}
