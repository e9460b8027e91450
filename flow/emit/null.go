package emit

// NullEmitter implements Emitter by discarding all events.
//
// Use it when event output is not wanted; the engine falls back to it when no
// emitter is configured.
type NullEmitter struct{}

// NewNullEmitter creates a new NullEmitter.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit discards the event.
func (n *NullEmitter) Emit(event Event) {}
