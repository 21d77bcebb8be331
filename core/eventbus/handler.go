package eventbus

import (
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/aurabot/aura-core/core/events"
)

// Callback receives a dispatched event. A returned error is logged and
// isolated to this handler; it never interrupts dispatch to others.
type Callback func(*events.Event) error

// Handler couples a callback with the filters that decide which events it
// receives. A handler is dispatch-eligible for an event iff the type,
// minimum-priority and source filters all pass.
type Handler struct {
	ID          string
	Callback    Callback
	Types       []events.Type // nil matches any type
	MinPriority events.Priority
	Sources     []string // nil matches any source
	CreatedAt   time.Time

	lastCalled atomic.Int64
	callCount  atomic.Uint64
}

// HandlerOption configures a handler at construction time.
type HandlerOption func(*Handler)

// WithTypes restricts the handler to the given event types. Leaving types
// empty keeps the match-any default.
func WithTypes(types ...events.Type) HandlerOption {
	return func(h *Handler) {
		if len(types) > 0 {
			h.Types = types
		}
	}
}

// WithMinPriority drops events below the given priority.
func WithMinPriority(p events.Priority) HandlerOption {
	return func(h *Handler) { h.MinPriority = p }
}

// WithSources restricts the handler to events from the given sources.
func WithSources(sources ...string) HandlerOption {
	return func(h *Handler) {
		if len(sources) > 0 {
			h.Sources = sources
		}
	}
}

// NewHandler builds an unregistered handler around the callback. Without
// options it matches every event.
func NewHandler(callback Callback, opts ...HandlerOption) *Handler {
	h := &Handler{
		ID:          uuid.NewString(),
		Callback:    callback,
		MinPriority: events.PriorityLow,
		CreatedAt:   time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Matches reports whether the handler's filters accept the event. It is
// pure: no side effects, no state consulted beyond the filters themselves.
func (h *Handler) Matches(e *events.Event) bool {
	if h.Types != nil && !slices.Contains(h.Types, e.Type) {
		return false
	}
	if e.Priority < h.MinPriority {
		return false
	}
	if h.Sources != nil && !slices.Contains(h.Sources, e.Source) {
		return false
	}
	return true
}

// CallCount returns how many events this handler has processed.
func (h *Handler) CallCount() uint64 { return h.callCount.Load() }

// LastCalled returns when the handler last processed an event, or the zero
// time if it never has.
func (h *Handler) LastCalled() time.Time {
	ns := h.lastCalled.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (h *Handler) markCalled() {
	h.lastCalled.Store(time.Now().UnixNano())
	h.callCount.Add(1)
}
