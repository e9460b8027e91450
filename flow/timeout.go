package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

type execResult struct {
	out json.RawMessage
	err error
}

// executeWithTimeout runs the step's executor under the engine's step
// timeout. An executor that ignores its context is abandoned once the
// deadline passes; its late result is discarded.
func (e *Engine) executeWithTimeout(ctx context.Context, exec StepExecutor, step Step) (json.RawMessage, error) {
	tctx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()

	done := make(chan execResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- execResult{err: fmt.Errorf("executor panicked: %v", r)}
			}
		}()
		out, err := exec.Execute(tctx, step.InputData)
		done <- execResult{out: out, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
			return nil, e.timeoutError(step, r.err)
		}
		return r.out, r.err
	case <-tctx.Done():
		return nil, e.timeoutError(step, tctx.Err())
	}
}

func (e *Engine) timeoutError(step Step, cause error) *Error {
	return stepError(CodeStepTimeout, step.ID,
		fmt.Sprintf("%s step exceeded timeout of %v", step.Specialization, e.stepTimeout), cause)
}
