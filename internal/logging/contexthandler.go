package logging

import (
	"context"
	"log/slog"
)

// ContextProvider supplies attributes evaluated at log time, not at setup.
// The director uses it to stamp the session ID on every record once the
// session has started, after the logger is already installed.
type ContextProvider func() []slog.Attr

// ContextHandler decorates each record with the provider's attributes
// before handing it to the wrapped handler.
type ContextHandler struct {
	next     slog.Handler
	provider ContextProvider
}

// NewContextHandler wraps next with late-bound attributes from provider.
func NewContextHandler(next slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{next: next, provider: provider}
}

// Enabled delegates to the wrapped handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle stamps the provider attributes onto the record and passes it on.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider != nil {
		r.AddAttrs(h.provider()...)
	}
	return h.next.Handle(ctx, r)
}

// WithAttrs pushes static attributes into the wrapped handler, keeping the
// provider on the outside so its attributes stay late-bound.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{next: h.next.WithAttrs(attrs), provider: h.provider}
}

// WithGroup opens the group on the wrapped handler.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ContextHandler{next: h.next.WithGroup(name), provider: h.provider}
}
