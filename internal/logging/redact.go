package logging

import (
	"context"
	"log/slog"
	"regexp"
)

const redacted = "[REDACTED]"

// Redactor masks credential-shaped substrings.
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor returns a Redactor that recognizes the key formats of the
// supported providers plus bearer tokens and key=value secrets.
func NewRedactor() *Redactor {
	raw := []string{
		`sk-ant-[A-Za-z0-9_-]{20,}`,
		`sk-(?:proj-)?[A-Za-z0-9_-]{20,}`,
		`AIza[A-Za-z0-9_-]{35}`,
		`(?i)bearer\s+[A-Za-z0-9._-]{20,}`,
		`(?i)(api[_-]?key|secret|password)(["'\s:=]+)[^\s"']{8,}`,
	}
	r := &Redactor{patterns: make([]*regexp.Regexp, len(raw))}
	for i, p := range raw {
		r.patterns[i] = regexp.MustCompile(p)
	}
	return r
}

// Redact returns s with every match replaced.
func (r *Redactor) Redact(s string) string {
	for i, p := range r.patterns {
		if i == len(r.patterns)-1 {
			// Keep the key name so the log line still says what was hidden.
			s = p.ReplaceAllString(s, "${1}${2}"+redacted)
			continue
		}
		s = p.ReplaceAllString(s, redacted)
	}
	return s
}

// RedactingHandler applies a Redactor to the message and string attributes
// of every record before passing it on.
type RedactingHandler struct {
	next     slog.Handler
	redactor *Redactor
}

// NewRedactingHandler wraps next.
func NewRedactingHandler(next slog.Handler, r *Redactor) *RedactingHandler {
	return &RedactingHandler{next: next, redactor: r}
}

// Enabled implements slog.Handler.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *RedactingHandler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, h.redactor.Redact(rec.Message), rec.PC)
	rec.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

// WithAttrs implements slog.Handler.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = h.redactAttr(a)
	}
	return &RedactingHandler{next: h.next.WithAttrs(clean), redactor: h.redactor}
}

// WithGroup implements slog.Handler.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name), redactor: h.redactor}
}

func (h *RedactingHandler) redactAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()
	switch a.Value.Kind() {
	case slog.KindString:
		a.Value = slog.StringValue(h.redactor.Redact(a.Value.String()))
	case slog.KindGroup:
		group := a.Value.Group()
		clean := make([]slog.Attr, len(group))
		for i, g := range group {
			clean[i] = h.redactAttr(g)
		}
		a.Value = slog.GroupValue(clean...)
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			a.Value = slog.StringValue(h.redactor.Redact(err.Error()))
		}
	}
	return a
}
