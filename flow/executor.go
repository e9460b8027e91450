package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// StepExecutor runs one workflow stage. Input is the workflow's requirements;
// output is the stage payload as stored in the step's outputData.
type StepExecutor interface {
	Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error)
}

// StepExecutorFunc adapts a function to StepExecutor.
type StepExecutorFunc func(ctx context.Context, input json.RawMessage) (json.RawMessage, error)

// Execute calls f.
func (f StepExecutorFunc) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	return f(ctx, input)
}

// Executors maps each stage to its strategy.
type Executors map[Specialization]StepExecutor

// Validate reports an error unless every stage has an executor. Standard
// executors must also have been built with a router and an invoker.
func (x Executors) Validate() error {
	var missing []string
	for _, sp := range specializations {
		if x[sp] == nil {
			missing = append(missing, string(sp))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("no executor registered for %s", strings.Join(missing, ", "))
	}
	for _, sp := range specializations {
		if v, ok := x[sp].(interface{ validate() error }); ok {
			if err := v.validate(); err != nil {
				return fmt.Errorf("%s executor: %w", sp, err)
			}
		}
	}
	return nil
}

// Invoker sends a prompt to a provider and returns the raw response text.
type Invoker interface {
	Invoke(ctx context.Context, providerID string, prompt string) (string, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, providerID string, prompt string) (string, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, providerID string, prompt string) (string, error) {
	return f(ctx, providerID, prompt)
}

// InstrumentInvoker records every invocation's outcome on metrics.
func InstrumentInvoker(inv Invoker, metrics *PrometheusMetrics) Invoker {
	if metrics == nil {
		return inv
	}
	return InvokerFunc(func(ctx context.Context, providerID string, prompt string) (string, error) {
		out, err := inv.Invoke(ctx, providerID, prompt)
		metrics.RecordInvocation(providerID, err)
		return out, err
	})
}

// enhancer resolves a stage's task category and asks the chosen provider to
// refine the stage payload.
type enhancer struct {
	router   *Router
	invoker  Invoker
	stage    Specialization
	category TaskCategory
}

func (e enhancer) validate() error {
	if e.router == nil {
		return errors.New("router is required")
	}
	if e.invoker == nil {
		return errors.New("invoker is required")
	}
	return nil
}

// enhance returns the provider's response for the draft payload. A missing
// provider or a failed call is a PROVIDER_INVOCATION error.
func (e enhancer) enhance(ctx context.Context, req Requirements, draft interface{}) (Enhancement, error) {
	res, err := e.router.Resolve(ctx, e.category)
	if err != nil {
		if errors.Is(err, ErrNoProviderConfigured) {
			return Enhancement{}, &Error{
				Code:     CodeProviderInvocation,
				Message:  fmt.Sprintf("no provider available to enhance %s output", e.stage),
				Category: e.category,
				Cause:    err,
			}
		}
		return Enhancement{}, err
	}

	prompt, err := buildPrompt(e.stage, req, draft)
	if err != nil {
		return Enhancement{}, &Error{Code: CodeStepExecution, Message: "failed to build prompt", Cause: err}
	}

	text, err := e.invoker.Invoke(ctx, string(res.Chosen.ID), prompt)
	if err != nil {
		return Enhancement{}, &Error{
			Code:     CodeProviderInvocation,
			Message:  fmt.Sprintf("%s invocation failed", res.Chosen.ID),
			Category: e.category,
			Cause:    err,
		}
	}

	return Enhancement{
		Enhancement: text,
		EnhancedBy: EnhancedBy{
			Provider:     res.Chosen.ID,
			Category:     e.category,
			UsedFallback: res.UsedFallback,
		},
	}, nil
}

func buildPrompt(stage Specialization, req Requirements, draft interface{}) (string, error) {
	reqJSON, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return "", err
	}
	draftJSON, err := json.MarshalIndent(draft, "", "  ")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are assisting with the %s stage of a software project.\n\n", stage)
	fmt.Fprintf(&b, "Project requirements:\n%s\n\n", reqJSON)
	fmt.Fprintf(&b, "Proposed %s plan:\n%s\n\n", stage, draftJSON)
	b.WriteString("Review the plan against the requirements and reply with concrete improvements.")
	return b.String(), nil
}
