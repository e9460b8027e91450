package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dshills/devflow/flow/store"
)

func TestError_IsByCode(t *testing.T) {
	inner := noProviderError(CategoryWorkflowOrchestration)
	outer := &Error{Code: CodeConfiguration, Message: "cannot create", Cause: inner}

	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"same code", inner, ErrNoProviderConfigured, true},
		{"wrapped cause", outer, ErrNoProviderConfigured, true},
		{"outer code", outer, ErrConfiguration, true},
		{"different code", inner, ErrPersistence, false},
		{"timeout is step execution", &Error{Code: CodeStepTimeout}, ErrStepExecution, true},
		{"step execution is not timeout", &Error{Code: CodeStepExecution}, ErrStepTimeout, false},
		{"fmt wrapped", fmt.Errorf("ctx: %w", inner), ErrNoProviderConfigured, true},
		{"store sentinel reachable", persistenceError("load", store.ErrNotFound), store.ErrNotFound, true},
		{"context reachable", stepError(CodeStepExecution, "s1", "execution canceled", context.Canceled), context.Canceled, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestError_Message(t *testing.T) {
	err := &Error{Code: CodePersistence, Message: "failed to load", Cause: errors.New("disk full")}
	if got := err.Error(); got != "PERSISTENCE: failed to load: disk full" {
		t.Errorf("Error() = %q", got)
	}

	err = noProviderError(CategoryTestGeneration)
	if !strings.Contains(err.Error(), "test-generation") {
		t.Errorf("message does not name category: %q", err.Error())
	}

	if got := ErrorCode(fmt.Errorf("x: %w", err)); got != CodeNoProviderConfigured {
		t.Errorf("ErrorCode = %q", got)
	}
	if got := ErrorCode(errors.New("plain")); got != "" {
		t.Errorf("ErrorCode(plain) = %q", got)
	}
}
