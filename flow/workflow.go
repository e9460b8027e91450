package flow

import "github.com/dshills/devflow/flow/store"

// Aliases for the persisted records so callers rarely import store directly.
type (
	Workflow       = store.Workflow
	Step           = store.Step
	WorkflowStatus = store.WorkflowStatus
	StepStatus     = store.StepStatus
	Specialization = store.Specialization
)

// Stages in execution order.
var specializations = []Specialization{
	store.Design,
	store.Development,
	store.Testing,
	store.Deployment,
}

// Specializations returns the four stages in execution order.
func Specializations() []Specialization {
	out := make([]Specialization, len(specializations))
	copy(out, specializations)
	return out
}

// categoryBySpecialization is the task category each stage routes its
// enhancement call through.
var categoryBySpecialization = map[Specialization]TaskCategory{
	store.Design:      CategoryLowCodeGeneration,
	store.Development: CategorySpreadsheetMacroGeneration,
	store.Testing:     CategoryTestGeneration,
	store.Deployment:  CategoryAgentExecution,
}

// CategoryFor returns the task category used by a stage.
func CategoryFor(sp Specialization) (TaskCategory, bool) {
	c, ok := categoryBySpecialization[sp]
	return c, ok
}

// DeriveStatus computes a workflow's status from its steps:
//   - any failed step: failed
//   - every step completed: completed
//   - any step started or completed: in_progress
//   - otherwise: draft
func DeriveStatus(steps []Step) WorkflowStatus {
	if len(steps) == 0 {
		return store.WorkflowDraft
	}
	completed := 0
	started := false
	for _, s := range steps {
		switch s.Status {
		case store.StepFailed:
			return store.WorkflowFailed
		case store.StepCompleted:
			completed++
			started = true
		case store.StepInProgress:
			started = true
		}
	}
	switch {
	case completed == len(steps):
		return store.WorkflowCompleted
	case started:
		return store.WorkflowInProgress
	default:
		return store.WorkflowDraft
	}
}
