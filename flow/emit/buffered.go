package emit

import "sync"

// BufferedEmitter implements Emitter by storing events in memory.
//
// Events are grouped by workflow ID and can be queried with an optional
// filter. It backs history queries for callers that inspect a run after the
// fact, such as tests asserting on the engine's event sequence and the sqlite
// quickstart example. The devflow CLI does not use it.
//
// Warning: events are never evicted on their own. Call Clear once a
// workflow's history is no longer needed.
//
// Example usage:
//
//	emitter := emit.NewBufferedEmitter()
//	engine, err := flow.New(router, st, executors, flow.WithEmitter(emitter))
//	...
//	_, err = engine.ExecuteWorkflow(ctx, id)
//
//	failures := emitter.GetHistoryWithFilter(id, emit.HistoryFilter{Msg: emit.MsgStepFailed})
//	emitter.Clear(id)
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event // workflowID -> events
}

// HistoryFilter specifies criteria for filtering execution history.
//
// All fields are optional and combined with AND logic.
type HistoryFilter struct {
	Specialization string // Filter by stage (empty = no filter)
	Msg            string // Filter by message (empty = no filter)
	MinStep        *int   // Minimum step order (nil = no filter)
	MaxStep        *int   // Maximum step order (nil = no filter)
}

func (f HistoryFilter) empty() bool {
	return f.Specialization == "" && f.Msg == "" && f.MinStep == nil && f.MaxStep == nil
}

func (f HistoryFilter) matches(event Event) bool {
	if f.Specialization != "" && event.Specialization != f.Specialization {
		return false
	}
	if f.Msg != "" && event.Msg != f.Msg {
		return false
	}
	if f.MinStep != nil && event.Step < *f.MinStep {
		return false
	}
	if f.MaxStep != nil && event.Step > *f.MaxStep {
		return false
	}
	return true
}

// NewBufferedEmitter creates a new BufferedEmitter. Safe for concurrent use.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{
		events: make(map[string][]Event),
	}
}

// Emit stores an event in the buffer.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events[event.WorkflowID] = append(b.events[event.WorkflowID], event)
}

// GetHistory returns a copy of all events for a workflow in emission order.
// It returns an empty slice when nothing was recorded.
func (b *BufferedEmitter) GetHistory(workflowID string) []Event {
	return b.GetHistoryWithFilter(workflowID, HistoryFilter{})
}

// GetHistoryWithFilter returns the workflow's events matching filter.
func (b *BufferedEmitter) GetHistoryWithFilter(workflowID string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	events := b.events[workflowID]
	if filter.empty() {
		result := make([]Event, len(events))
		copy(result, events)
		return result
	}

	result := []Event{}
	for _, event := range events {
		if filter.matches(event) {
			result = append(result, event)
		}
	}
	return result
}

// Clear removes the history for workflowID. An empty workflowID clears
// everything.
func (b *BufferedEmitter) Clear(workflowID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if workflowID == "" {
		b.events = make(map[string][]Event)
		return
	}
	delete(b.events, workflowID)
}
