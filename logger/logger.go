// Package logger configures structured logging for rss-toot.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

type contextKey string

const attrKey contextKey = "attrKey"

// ContextHandler implements [slog.Handler] and adds to each record any
// attributes attached to the context with [Ctx].
type ContextHandler struct {
	slog.Handler
}

// NewContextHandler creates a ContextHandler with handler as the base.
func NewContextHandler(handler slog.Handler) ContextHandler {
	return ContextHandler{Handler: handler}
}

// Handle implements [slog.Handler].
func (h ContextHandler) Handle(ctx context.Context, record slog.Record) error {
	if attrs, ok := ctx.Value(attrKey).([]slog.Attr); ok {
		record.AddAttrs(attrs...)
	}
	return h.Handler.Handle(ctx, record)
}

// WithAttrs implements [slog.Handler], keeping the context lookup.
func (h ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

// WithGroup implements [slog.Handler], keeping the context lookup.
func (h ContextHandler) WithGroup(name string) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithGroup(name)}
}

// Ctx returns a context carrying toAppend in addition to any attributes
// already attached. They are logged by a [ContextHandler].
func Ctx(ctx context.Context, toAppend ...slog.Attr) context.Context {
	existing, _ := ctx.Value(attrKey).([]slog.Attr)

	attrs := make([]slog.Attr, 0, len(existing)+len(toAppend))
	attrs = append(attrs, existing...)
	attrs = append(attrs, toAppend...)
	return context.WithValue(ctx, attrKey, attrs)
}

// New builds a logger writing to w in the given format ("text" or "json")
// at the given level ("debug", "info", "warn", "error").
func New(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}

	return slog.New(NewContextHandler(handler)), nil
}
