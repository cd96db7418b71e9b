package logging

import (
	"context"
	"log/slog"
	"sync"
)

// ComponentFilterHandler gates records by a per-component minimum level.
// The component is taken from the "component" attribute, either attached
// with logger.With or passed on the record itself. Components without an
// override use the default level.
//
// Levels can be changed at runtime; all handlers derived through WithAttrs
// and WithGroup share the same level table.
type ComponentFilterHandler struct {
	next      slog.Handler
	levels    *levelTable
	component string
}

type levelTable struct {
	mu        sync.RWMutex
	def       slog.Level
	overrides map[string]slog.Level
}

// NewComponentFilterHandler wraps next with per-component level filtering.
func NewComponentFilterHandler(next slog.Handler, defaultLevel slog.Level) *ComponentFilterHandler {
	return &ComponentFilterHandler{
		next:   next,
		levels: &levelTable{def: defaultLevel, overrides: make(map[string]slog.Level)},
	}
}

// SetLevel overrides the minimum level for a component.
func (h *ComponentFilterHandler) SetLevel(component string, level slog.Level) {
	h.levels.mu.Lock()
	defer h.levels.mu.Unlock()
	h.levels.overrides[component] = level
}

// ClearLevel removes a component override.
func (h *ComponentFilterHandler) ClearLevel(component string) {
	h.levels.mu.Lock()
	defer h.levels.mu.Unlock()
	delete(h.levels.overrides, component)
}

// Level returns the effective minimum level for a component.
func (h *ComponentFilterHandler) Level(component string) slog.Level {
	h.levels.mu.RLock()
	defer h.levels.mu.RUnlock()
	if l, ok := h.levels.overrides[component]; ok {
		return l
	}
	return h.levels.def
}

// DefaultLevel returns the level used for components without an override.
func (h *ComponentFilterHandler) DefaultLevel() slog.Level {
	return h.levels.def
}

// lowest returns the lowest level any component may log at.
func (h *ComponentFilterHandler) lowest() slog.Level {
	h.levels.mu.RLock()
	defer h.levels.mu.RUnlock()
	low := h.levels.def
	for _, l := range h.levels.overrides {
		low = min(low, l)
	}
	return low
}

// Enabled reports whether a record at level may pass. Without a component
// bound by WithAttrs the record's own attributes are not known yet, so the
// lowest configured level decides and Handle filters precisely.
func (h *ComponentFilterHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.component != "" {
		return level >= h.Level(h.component)
	}
	return level >= h.lowest()
}

// Handle forwards r if its component's level allows it.
func (h *ComponentFilterHandler) Handle(ctx context.Context, r slog.Record) error {
	component := h.component
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			component = a.Value.String()
			return false
		}
		return true
	})
	if r.Level < h.Level(component) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

// WithAttrs implements slog.Handler.
func (h *ComponentFilterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.next = h.next.WithAttrs(attrs)
	for _, a := range attrs {
		if a.Key == "component" {
			clone.component = a.Value.String()
		}
	}
	return &clone
}

// WithGroup implements slog.Handler.
func (h *ComponentFilterHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.next = h.next.WithGroup(name)
	return &clone
}
