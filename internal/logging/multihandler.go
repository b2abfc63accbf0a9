package logging

import (
	"context"
	"errors"
	"log/slog"
)

// MultiHandler duplicates every record to each configured sink. The
// director logs to console, file, GELF and the OTel bridge at once; a
// failing sink must not starve the others.
type MultiHandler struct {
	sinks []slog.Handler
}

// NewMultiHandler builds a fan-out over the given sinks. Nil entries are
// skipped so optional sinks can be passed unconditionally.
func NewMultiHandler(sinks ...slog.Handler) *MultiHandler {
	m := &MultiHandler{}
	for _, h := range sinks {
		if h != nil {
			m.sinks = append(m.sinks, h)
		}
	}
	return m
}

// Enabled reports whether at least one sink wants the level.
func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.sinks {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle delivers the record to every enabled sink. Each sink gets its own
// clone; failures are collected instead of short-circuiting delivery.
func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.sinks {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WithAttrs applies the attributes to every sink.
func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(m.sinks))
	for i, h := range m.sinks {
		next[i] = h.WithAttrs(attrs)
	}
	return &MultiHandler{sinks: next}
}

// WithGroup opens the group on every sink.
func (m *MultiHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return m
	}
	next := make([]slog.Handler, len(m.sinks))
	for i, h := range m.sinks {
		next[i] = h.WithGroup(name)
	}
	return &MultiHandler{sinks: next}
}
