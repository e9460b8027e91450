package flow

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// BatchResult is the outcome of one workflow in ExecuteMany.
type BatchResult struct {
	WorkflowID string
	Workflow   Workflow
	Err        error
}

// ExecuteMany runs independent workflows concurrently, at most concurrency at
// a time (no limit when concurrency <= 0). One workflow failing does not stop
// the others. Results are returned in the order of ids; the error joins every
// per-workflow failure.
func (e *Engine) ExecuteMany(ctx context.Context, ids []string, concurrency int) ([]BatchResult, error) {
	results := make([]BatchResult, len(ids))

	var g errgroup.Group
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			wf, err := e.ExecuteWorkflow(ctx, id)
			results[i] = BatchResult{WorkflowID: id, Workflow: wf, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return results, errors.Join(errs...)
}
