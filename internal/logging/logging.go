// Package logging provides utilities for structured logging across docselect.
//
// Design principles:
//   - Logging is dependency-injected, never global
//   - Each component owns its own scoped logger
//   - Logger scoping happens once at construction time
//   - slog.With() is used to attach default attributes
//   - If no logger is provided, a discard logger is used
//
// Global configuration (output format, level, destination) belongs only in main().
// Components must never call slog.SetDefault or access global loggers.
//
// Logging is intentionally sparse:
//   - No logging inside tight loops (tokenizing, evaluating, bucket scans)
//   - Lifecycle boundaries are the intended log points
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// discardHandler is a handler that discards all log records.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Discard returns a logger that discards all output.
// Use this as a default when no logger is provided.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// Default returns the provided logger if non-nil, otherwise returns a discard logger.
// This is the standard pattern for optional logger parameters:
//
//	func NewComponent(logger *slog.Logger) *Component {
//	    logger = logging.Default(logger)
//	    return &Component{logger: logger.With("component", "name")}
//	}
func Default(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return Discard()
}

// Options configures the root logger built in main().
type Options struct {
	Format string     // "text" (default) or "json"
	Level  slog.Level // default minimum level for all components

	// Components overrides Level per "component" attribute value.
	Components map[string]slog.Level
}

// New builds the root logger writing to w, wrapped in a component filter so
// per-component levels can be raised or lowered later.
func New(w io.Writer, opts Options) (*slog.Logger, *ComponentFilterHandler, error) {
	// The base handler passes everything; the filter decides.
	hopts := &slog.HandlerOptions{Level: slog.LevelDebug}
	var base slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", "text":
		base = slog.NewTextHandler(w, hopts)
	case "json":
		base = slog.NewJSONHandler(w, hopts)
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
	filter := NewComponentFilterHandler(base, opts.Level)
	for component, level := range opts.Components {
		filter.SetLevel(component, level)
	}
	return slog.New(filter), filter, nil
}

// ParseLevel parses a level name such as "debug" or "WARN".
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}

// ParseComponentLevels parses overrides of the form "component=level".
func ParseComponentLevels(specs []string) (map[string]slog.Level, error) {
	out := make(map[string]slog.Level, len(specs))
	for _, spec := range specs {
		component, name, ok := strings.Cut(spec, "=")
		component = strings.TrimSpace(component)
		if !ok || component == "" {
			return nil, fmt.Errorf("invalid component level %q, want component=level", spec)
		}
		level, err := ParseLevel(strings.TrimSpace(name))
		if err != nil {
			return nil, fmt.Errorf("component %s: %w", component, err)
		}
		out[component] = level
	}
	return out, nil
}
