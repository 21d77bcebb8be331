package orchestration

import (
	"context"
	"sync"

	"github.com/aurabot/aura-core/core/eventbus"
	"github.com/aurabot/aura-core/core/events"
	"github.com/aurabot/aura-core/core/statemachine"
)

// Component is the contract every orchestrated component satisfies.
// Initialize and Shutdown are called by the orchestrator in dependency
// order and reverse dependency order respectively.
type Component interface {
	Name() string
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Pausable is implemented by components that can suspend work without
// shutting down. The orchestrator pauses them when the assistant enters
// PAUSED and resumes them on the way back to READY.
type Pausable interface {
	Pause() error
	Resume() error
}

// ComponentBase carries the wiring every component needs: a name, the
// shared bus and state machine, and bookkeeping for registered handlers so
// teardown can unregister them all. Embed it and override Initialize and
// Shutdown as needed.
type ComponentBase struct {
	name    string
	bus     *eventbus.EventBus
	machine *statemachine.Machine

	mu         sync.Mutex
	handlerIDs []string
}

// NewComponentBase wires a base to the shared bus and machine. Both may be
// nil for components that never touch them.
func NewComponentBase(name string, bus *eventbus.EventBus, machine *statemachine.Machine) ComponentBase {
	return ComponentBase{name: name, bus: bus, machine: machine}
}

func (b *ComponentBase) Name() string { return b.name }

// Bus returns the shared event bus, or nil if none was wired.
func (b *ComponentBase) Bus() *eventbus.EventBus { return b.bus }

// Machine returns the shared state machine, or nil if none was wired.
func (b *ComponentBase) Machine() *statemachine.Machine { return b.machine }

// Initialize is a no-op default.
func (b *ComponentBase) Initialize(ctx context.Context) error { return nil }

// Shutdown unregisters every handler the component subscribed through
// Subscribe.
func (b *ComponentBase) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	ids := b.handlerIDs
	b.handlerIDs = nil
	b.mu.Unlock()

	for _, id := range ids {
		if b.bus != nil {
			b.bus.UnregisterHandler(id)
		}
	}
	return nil
}

// Subscribe registers a handler on the shared bus and remembers its id so
// Shutdown can unregister it.
func (b *ComponentBase) Subscribe(callback eventbus.Callback, opts ...eventbus.HandlerOption) string {
	if b.bus == nil {
		return ""
	}

	id := b.bus.RegisterHandler(eventbus.NewHandler(callback, opts...))

	b.mu.Lock()
	b.handlerIDs = append(b.handlerIDs, id)
	b.mu.Unlock()
	return id
}

// Emit posts an event onto the shared bus with the component as its
// source. It reports whether the event was queued.
func (b *ComponentBase) Emit(t events.Type, opts ...events.Option) bool {
	if b.bus == nil {
		return false
	}

	opts = append([]events.Option{events.WithSource(b.name)}, opts...)
	return b.bus.PostEvent(events.New(t, opts...))
}
