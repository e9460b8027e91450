// Package emit provides observability events for workflow execution.
package emit

// Event represents an observability event emitted during workflow execution.
//
// Events provide insight into engine behavior:
//   - Workflow creation, start and finish
//   - Step start, completion and failure
//   - Provider routing decisions and fallbacks, reported once a step's
//     enhanced output has been recorded
//
// Events are emitted to an Emitter which can log them, turn them into
// OpenTelemetry spans, or keep them in memory for inspection.
type Event struct {
	// WorkflowID identifies the workflow that emitted this event.
	WorkflowID string

	// Step is the step order (1..4). Zero for workflow-level events.
	Step int

	// Specialization names the stage that emitted this event.
	// Empty for workflow-level events.
	Specialization string

	// Msg is a short machine-friendly event name (e.g. "step_start").
	Msg string

	// Meta contains additional structured data specific to this event.
	// Common keys:
	//   - "duration_ms": Execution duration in milliseconds
	//   - "error": Error details
	//   - "provider": Provider chosen for a model invocation
	//   - "used_fallback": Whether the secondary provider was chosen
	//   - "category": Task category a route was resolved for
	Meta map[string]interface{}
}

// Event names emitted by the engine.
const (
	MsgWorkflowCreated  = "workflow_created"
	MsgWorkflowStart    = "workflow_start"
	MsgWorkflowComplete = "workflow_complete"
	MsgWorkflowFailed   = "workflow_failed"
	MsgStepStart        = "step_start"
	MsgStepComplete     = "step_complete"
	MsgStepFailed       = "step_failed"
	MsgRouteResolved    = "route_resolved"
)
