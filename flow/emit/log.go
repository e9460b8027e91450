package emit

import (
	"context"
	"log/slog"
)

// LogEmitter implements Emitter by writing each event as a structured slog
// record.
//
// Events whose Meta carries an "error" key are logged at error level,
// everything else at the configured level (info by default).
//
// Example output with a JSON handler:
//
//	{"level":"INFO","msg":"step_complete","workflow_id":"…","step":1,"specialization":"design","duration_ms":12}
type LogEmitter struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogEmitter creates a LogEmitter writing to logger. A nil logger uses
// slog.Default().
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger, level: slog.LevelInfo}
}

// WithLevel returns a copy of the emitter logging non-error events at level.
func (l *LogEmitter) WithLevel(level slog.Level) *LogEmitter {
	return &LogEmitter{logger: l.logger, level: level}
}

// Emit logs the event.
func (l *LogEmitter) Emit(event Event) {
	level := l.level
	if _, failed := event.Meta["error"]; failed {
		level = slog.LevelError
	}

	attrs := make([]slog.Attr, 0, 3+len(event.Meta))
	attrs = append(attrs, slog.String("workflow_id", event.WorkflowID))
	if event.Step > 0 {
		attrs = append(attrs, slog.Int("step", event.Step))
	}
	if event.Specialization != "" {
		attrs = append(attrs, slog.String("specialization", event.Specialization))
	}
	for _, key := range sortedKeys(event.Meta) {
		attrs = append(attrs, slog.Any(key, event.Meta[key]))
	}

	l.logger.LogAttrs(context.Background(), level, event.Msg, attrs...)
}
