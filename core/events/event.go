package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is the message envelope passed through the bus. Whoever constructs
// an event owns it until it is posted; after posting, ownership is shared
// read-only across every handler it is dispatched to. The only sanctioned
// mutation is MergeData.
type Event struct {
	ID        string
	Type      Type
	Priority  Priority
	Source    string
	Timestamp time.Time
	Data      map[string]any
}

// Option configures an event at construction time.
type Option func(*Event)

// WithPriority sets the event priority. The default is NORMAL.
func WithPriority(p Priority) Option {
	return func(e *Event) { e.Priority = p }
}

// WithSource names the component that produced the event.
func WithSource(source string) Option {
	return func(e *Event) { e.Source = source }
}

// WithData replaces the event payload.
func WithData(data map[string]any) Option {
	return func(e *Event) { e.Data = data }
}

// WithField sets a single payload key.
func WithField(key string, value any) Option {
	return func(e *Event) {
		if e.Data == nil {
			e.Data = map[string]any{}
		}
		e.Data[key] = value
	}
}

// WithID overrides the generated event id. Used when reconstructing an
// event from its wire record.
func WithID(id string) Option {
	return func(e *Event) { e.ID = id }
}

// WithTimestamp overrides the creation timestamp. Used when reconstructing
// an event from its wire record.
func WithTimestamp(ts time.Time) Option {
	return func(e *Event) { e.Timestamp = ts }
}

// New creates an event of the given type. The id and timestamp are assigned
// at construction unless overridden.
func New(t Type, opts ...Option) *Event {
	e := &Event{
		ID:        uuid.NewString(),
		Type:      t,
		Priority:  PriorityNormal,
		Source:    "unknown",
		Timestamp: time.Now(),
		Data:      map[string]any{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Get returns a payload value, or def when the key is absent.
func (e *Event) Get(key string, def any) any {
	if v, ok := e.Data[key]; ok {
		return v
	}
	return def
}

// MergeData adds the given keys to the payload, overwriting on collision.
// Keys not named in additional survive unchanged. Returns the event for
// chaining.
func (e *Event) MergeData(additional map[string]any) *Event {
	if e.Data == nil {
		e.Data = map[string]any{}
	}
	for k, v := range additional {
		e.Data[k] = v
	}
	return e
}

func (e *Event) String() string {
	return fmt.Sprintf("Event(type=%s, priority=%s, source=%s)", e.Type, e.Priority, e.Source)
}
