// Package orchestration ties the assistant together: it owns the shared
// event bus and state machine, registers components with their declared
// dependencies, initializes them in dependency order, and dispatches
// capability invocations through each component's explicit table.
package orchestration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/aurabot/aura-core/core/eventbus"
	"github.com/aurabot/aura-core/core/events"
	"github.com/aurabot/aura-core/core/statemachine"
)

const defaultStopTimeout = 5 * time.Second

type Orchestrator struct {
	bus     *eventbus.EventBus
	machine *statemachine.Machine

	mu         sync.Mutex
	components map[string]Component
	deps       map[string][]string
	critical   map[string]struct{}
	statuses   map[string]Status
	initOrder  []string

	closeOnce   sync.Once
	stopTimeout time.Duration
	baseContext context.Context
}

type OrchestratorOption func(*Orchestrator)

// WithEventBus substitutes the shared bus. By default the orchestrator
// constructs one with default settings.
func WithEventBus(bus *eventbus.EventBus) OrchestratorOption {
	return func(o *Orchestrator) { o.bus = bus }
}

// WithStateMachine substitutes the shared state machine. The machine is
// expected to be bound to the orchestrator's bus so committed transitions
// reach components.
func WithStateMachine(machine *statemachine.Machine) OrchestratorOption {
	return func(o *Orchestrator) { o.machine = machine }
}

// WithCriticalComponents names the components whose initialization failure
// marks the whole startup as failed. Failures outside this set are logged
// and surfaced on the bus but do not abort startup.
func WithCriticalComponents(names ...string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.critical = map[string]struct{}{}
		for _, name := range names {
			o.critical[name] = struct{}{}
		}
	}
}

// WithStopTimeout bounds how long Close waits for bus workers to drain.
func WithStopTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.stopTimeout = d
		}
	}
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		components:  map[string]Component{},
		deps:        map[string][]string{},
		critical:    map[string]struct{}{},
		statuses:    map[string]Status{},
		stopTimeout: defaultStopTimeout,
		baseContext: context.Background(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.bus == nil {
		o.bus = eventbus.New()
	}
	if o.machine == nil {
		o.machine = statemachine.New(statemachine.WithEventBus(o.bus))
	}
	return o
}

// Bus returns the shared event bus.
func (o *Orchestrator) Bus() *eventbus.EventBus { return o.bus }

// Machine returns the shared state machine.
func (o *Orchestrator) Machine() *statemachine.Machine { return o.machine }

// Register adds a component along with the names of the components it
// depends on. Dependencies that are never registered are treated as
// optional. Registration is rejected once initialization has run.
func (o *Orchestrator) Register(c Component, deps ...string) error {
	name := c.Name()
	if name == "" {
		return fmt.Errorf("component has no name")
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.initOrder != nil {
		return fmt.Errorf("cannot register %q after initialization", name)
	}
	if _, exists := o.components[name]; exists {
		return fmt.Errorf("component %q already registered", name)
	}

	o.components[name] = c
	o.deps[name] = deps
	o.statuses[name] = StatusUninitialized
	logger.Debug("registered component", "component", name, "dependencies", deps)
	return nil
}

// Initialize starts the bus, computes the dependency order, and
// initializes every registered component in that order. A component
// failure is logged and posted to the bus but does not stop the remaining
// components; only failures in the critical set make Initialize return an
// error. On full or partial success the machine moves to READY.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "orchestrator.initialize")
	defer span.End()

	o.baseContext = ctx
	if err := o.bus.Start(ctx); err != nil {
		recordedErr := fmt.Errorf("failed to start event bus: %w", err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		return recordedErr
	}

	o.mu.Lock()
	registered := make(map[string]struct{}, len(o.components))
	for name := range o.components {
		registered[name] = struct{}{}
	}
	order, err := initializationOrder(registered, o.deps)
	if err != nil {
		o.mu.Unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	o.initOrder = order
	o.mu.Unlock()

	var criticalFailures []string
	for _, name := range order {
		o.mu.Lock()
		component := o.components[name]
		o.statuses[name] = StatusInitializing
		o.mu.Unlock()

		err := panicSafeComponentCall(name, "initialization", component.Initialize)(ctx)

		o.mu.Lock()
		if err != nil {
			o.statuses[name] = StatusError
		} else {
			o.statuses[name] = StatusReady
		}
		o.mu.Unlock()

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.ErrorContext(ctx, "component initialization failed",
				"component", name, "error", err)
			o.postComponentStatus(name, StatusError, err)
			if _, isCritical := o.critical[name]; isCritical {
				criticalFailures = append(criticalFailures, name)
			}
			continue
		}
		o.postComponentStatus(name, StatusReady, nil)
	}

	if len(criticalFailures) > 0 {
		o.machine.TransitionTo(statemachine.StateError,
			map[string]any{"critical_error": true})
		return &CriticalInitError{Components: criticalFailures}
	}

	if !o.machine.TransitionTo(statemachine.StateReady, nil) {
		logger.WarnContext(ctx, "machine did not reach READY after initialization",
			"state", o.machine.Current().String())
	}
	return nil
}

// Close moves the machine to SHUTTING_DOWN, shuts components down in
// reverse initialization order, and stops the bus. Safe to call more than
// once.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		ctx := o.baseContext
		o.machine.TransitionTo(statemachine.StateShuttingDown, nil)

		o.mu.Lock()
		order := make([]string, len(o.initOrder))
		copy(order, o.initOrder)
		o.mu.Unlock()

		for i := len(order) - 1; i >= 0; i-- {
			name := order[i]
			o.mu.Lock()
			component := o.components[name]
			o.mu.Unlock()

			if err := panicSafeComponentCall(name, "shutdown", component.Shutdown)(ctx); err != nil {
				logger.ErrorContext(ctx, "component shutdown failed",
					"component", name, "error", err)
			}

			o.mu.Lock()
			o.statuses[name] = StatusShutdown
			o.mu.Unlock()
		}

		if err := o.bus.Stop(o.stopTimeout); err != nil {
			logger.ErrorContext(ctx, "event bus stop failed", "error", err)
		}
	})
}

// Invoke dispatches a capability invocation to a named component through
// its explicit capability table. Unknown components and capabilities are
// rejected with typed errors.
func (o *Orchestrator) Invoke(ctx context.Context, component string, capability Capability, args map[string]any) (any, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.invoke")
	defer span.End()

	o.mu.Lock()
	c, ok := o.components[component]
	o.mu.Unlock()
	if !ok {
		err := &UnknownComponentError{Component: component}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	provider, ok := c.(CapabilityProvider)
	if !ok || !capability.IsValid() {
		err := &UnknownCapabilityError{Component: component, Capability: capability}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	fn, ok := provider.Capabilities()[capability]
	if !ok {
		err := &UnknownCapabilityError{Component: component, Capability: capability}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	result, err := fn(ctx, args)
	if err != nil {
		recordedErr := fmt.Errorf("capability %s on %s failed: %w", capability, component, err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		return nil, recordedErr
	}
	return result, nil
}

// Pause moves the machine to PAUSED and pauses every pausable component.
func (o *Orchestrator) Pause() bool {
	if !o.machine.TransitionTo(statemachine.StatePaused, nil) {
		return false
	}
	o.forEachPausable(func(name string, p Pausable) {
		if err := p.Pause(); err != nil {
			logger.Error("component pause failed", "component", name, "error", err)
			return
		}
		o.setStatus(name, StatusPaused)
	})
	return true
}

// Resume resumes every paused component and moves the machine back to
// READY.
func (o *Orchestrator) Resume() bool {
	if !o.machine.TransitionTo(statemachine.StateReady, nil) {
		return false
	}
	o.forEachPausable(func(name string, p Pausable) {
		if err := p.Resume(); err != nil {
			logger.Error("component resume failed", "component", name, "error", err)
			return
		}
		o.setStatus(name, StatusReady)
	})
	return true
}

// ComponentStatus returns the lifecycle status of a named component.
func (o *Orchestrator) ComponentStatus(name string) (Status, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.statuses[name]
	return s, ok
}

// ComponentStatuses returns a snapshot of every component's status.
func (o *Orchestrator) ComponentStatuses() map[string]Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make(map[string]Status, len(o.statuses))
	for name, s := range o.statuses {
		out[name] = s
	}
	return out
}

// InitializationOrder returns the dependency order computed by Initialize,
// or nil before initialization.
func (o *Orchestrator) InitializationOrder() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]string, len(o.initOrder))
	copy(out, o.initOrder)
	return out
}

func (o *Orchestrator) setStatus(name string, s Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.statuses[name]; ok {
		o.statuses[name] = s
	}
}

func (o *Orchestrator) forEachPausable(fn func(name string, p Pausable)) {
	o.mu.Lock()
	pausable := make(map[string]Pausable, len(o.components))
	for name, c := range o.components {
		if p, ok := c.(Pausable); ok {
			pausable[name] = p
		}
	}
	o.mu.Unlock()

	for name, p := range pausable {
		fn(name, p)
	}
}

func (o *Orchestrator) postComponentStatus(name string, s Status, failure error) {
	data := map[string]any{
		"component": name,
		"status":    s.String(),
	}
	priority := events.PriorityNormal
	if failure != nil {
		data["error"] = failure.Error()
		priority = events.PriorityHigh
	}

	o.bus.PostEvent(events.New(events.TypeComponentStatus,
		events.WithSource("orchestrator"),
		events.WithPriority(priority),
		events.WithData(data),
	))
}
