// Package log provides structured-logging helpers shared across the
// interpreter, plugin manager, and option plugins.
package log

import (
	"context"
	"log/slog"
)

// fields carries the FSM trace context attached to session-level log
// records: state, trigger, option, byte index.
type fields struct {
	state     string
	trigger   string
	option    string
	byteIndex int64
	hasIndex  bool
}

type fieldsKey struct{}

// WithState returns a context carrying the given FSM state for later
// attachment to log records via ContextHandler.
func WithState(ctx context.Context, state string) context.Context {
	f := fieldsFrom(ctx)
	f.state = state
	return context.WithValue(ctx, fieldsKey{}, f)
}

// WithTrigger annotates the context with the trigger being processed.
func WithTrigger(ctx context.Context, trigger string) context.Context {
	f := fieldsFrom(ctx)
	f.trigger = trigger
	return context.WithValue(ctx, fieldsKey{}, f)
}

// WithOption annotates the context with the option plugin handling the
// current byte.
func WithOption(ctx context.Context, option string) context.Context {
	f := fieldsFrom(ctx)
	f.option = option
	return context.WithValue(ctx, fieldsKey{}, f)
}

// WithByteIndex annotates the context with the pipeline's processed-byte
// counter, so a log line can be correlated to a specific input byte.
func WithByteIndex(ctx context.Context, idx int64) context.Context {
	f := fieldsFrom(ctx)
	f.byteIndex = idx
	f.hasIndex = true
	return context.WithValue(ctx, fieldsKey{}, f)
}

func fieldsFrom(ctx context.Context) fields {
	if f, ok := ctx.Value(fieldsKey{}).(fields); ok {
		return f
	}
	return fields{}
}

// ContextHandler is a slog.Handler that enriches every record passing
// through it with the FSM trace context attached to the record's
// context.Context (state, trigger, option, byte index). It is the
// structural inverse of a redacting handler: where a redacting handler
// strips attributes before forwarding, ContextHandler adds them.
type ContextHandler struct {
	next slog.Handler
}

// NewContextHandler wraps next so records carry FSM trace context.
func NewContextHandler(next slog.Handler) *ContextHandler {
	return &ContextHandler{next: next}
}

// Enabled implements slog.Handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler. It injects FSM trace attributes before
// forwarding the record.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	f := fieldsFrom(ctx)

	if f.state != "" {
		r.AddAttrs(slog.String("state", f.state))
	}
	if f.trigger != "" {
		r.AddAttrs(slog.String("trigger", f.trigger))
	}
	if f.option != "" {
		r.AddAttrs(slog.String("option", f.option))
	}
	if f.hasIndex {
		r.AddAttrs(slog.Int64("byte_index", f.byteIndex))
	}

	return h.next.Handle(ctx, r)
}

// WithAttrs implements slog.Handler.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{next: h.next.WithAttrs(attrs)}
}

// WithGroup implements slog.Handler.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{next: h.next.WithGroup(name)}
}
