// Package statemachine drives the assistant's operational lifecycle: a
// closed set of states, declared direct and global transitions with guard
// conditions, and committed-transition fan-out through the event bus.
package statemachine

import (
	"reflect"
	"sync"
	"time"

	"github.com/jinzhu/copier"

	"github.com/aurabot/aura-core/core/eventbus"
	"github.com/aurabot/aura-core/core/events"
)

const defaultHistoryLimit = 20

// StateCallback observes entry into or exit from a state.
type StateCallback func(state State, snap Snapshot)

// TransitionCallback observes any committed transition.
type TransitionCallback func(from, to State, snap Snapshot)

// HistoryEntry records one committed transition together with the context
// as it stood at commit time.
type HistoryEntry struct {
	From      State
	To        State
	Timestamp time.Time
	Context   Snapshot
}

// StateInfo is an introspection bundle describing the current state.
type StateInfo struct {
	Current            State
	Previous           State
	Duration           time.Duration
	EntryTime          time.Time
	Expired            bool
	Description        string
	Cue                string
	CanInterrupt       bool
	Weight             int
	AllowedTransitions []State
}

// Machine is the assistant's state machine. All transition evaluation and
// commit runs behind a single mutex, so there is exactly one current state
// at any instant and concurrent TransitionTo calls serialize.
//
// Callbacks, guards and actions run while the machine lock is held; they
// must not call back into the machine.
type Machine struct {
	mu sync.Mutex

	current   State
	previous  State
	entryTime time.Time
	context   map[string]any

	transitions map[State]map[State]*Transition
	global      []*Transition

	onEnter map[State][]StateCallback
	onExit  map[State][]StateCallback
	onAny   []TransitionCallback

	history      []HistoryEntry
	historyLimit int

	bus *eventbus.EventBus
	now func() time.Time
}

// Option configures a machine at construction time.
type Option func(*Machine)

// WithEventBus binds the machine to a bus; every committed transition emits
// a STATE_CHANGE event onto it.
func WithEventBus(bus *eventbus.EventBus) Option {
	return func(m *Machine) { m.bus = bus }
}

// WithHistoryLimit bounds the retained transition history.
func WithHistoryLimit(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.historyLimit = n
		}
	}
}

// WithClock substitutes the time source, letting tests advance state age
// without sleeping.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// WithoutDefaultTransitions starts the machine with an empty transition
// table instead of the standard assistant lifecycle edges.
func WithoutDefaultTransitions() Option {
	return func(m *Machine) { m.transitions = nil }
}

// New creates a machine in INITIALIZING with the standard transition table
// installed.
func New(opts ...Option) *Machine {
	m := &Machine{
		current:      StateInitializing,
		context:      map[string]any{},
		transitions:  map[State]map[State]*Transition{},
		onEnter:      map[State][]StateCallback{},
		onExit:       map[State][]StateCallback{},
		historyLimit: defaultHistoryLimit,
		now:          time.Now,
	}
	installDefaults := true
	for _, opt := range opts {
		opt(m)
	}
	if m.transitions == nil {
		m.transitions = map[State]map[State]*Transition{}
		installDefaults = false
	}
	if installDefaults {
		m.installDefaultTransitions()
	}
	m.entryTime = m.now()

	logger.Info("state machine initialized", "state", m.current.String())
	return m
}

// AddTransition declares a direct edge between two states.
func (m *Machine) AddTransition(from, to State, opts ...TransitionOption) {
	t := &Transition{FromState: &from, ToState: to}
	for _, opt := range opts {
		opt(t)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transitions[from] == nil {
		m.transitions[from] = map[State]*Transition{}
	}
	m.transitions[from][to] = t
	logger.Debug("added transition", "from", from.String(), "to", to.String())
}

// AddGlobalTransition declares an edge usable from any current state.
func (m *Machine) AddGlobalTransition(to State, opts ...TransitionOption) {
	t := &Transition{ToState: to}
	for _, opt := range opts {
		opt(t)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.global = append(m.global, t)
	logger.Debug("added global transition", "to", to.String())
}

// resolve finds the transition that would carry the machine from current to
// target. A direct (current,target) edge, when declared, is authoritative:
// its guard decides the outcome and a failed guard is a rejection, never a
// fallthrough to globals. Global edges to target are consulted only when no
// direct edge exists, skipping any whose guard fails. Both TransitionTo and
// CanTransitionTo go through this single lookup. Callers hold m.mu.
func (m *Machine) resolve(target State, snap Snapshot) *Transition {
	if byTarget, ok := m.transitions[m.current]; ok {
		if t, ok := byTarget[target]; ok {
			if t.allowed(snap) {
				return t
			}
			return nil
		}
	}
	for _, t := range m.global {
		if t.ToState == target && t.allowed(snap) {
			return t
		}
	}
	return nil
}

// TransitionTo attempts to move the machine to target. contextPatch is
// merged into the shared context before any guard is evaluated, so guards
// observe the just-merged values. On success the transition fully commits:
// exit callbacks, state swap, history, actions, entry callbacks, generic
// callbacks, and a STATE_CHANGE event if a bus is bound. On rejection the
// machine is left with no observable change and false is returned.
//
// A callback or action that fails after the state swap does not roll the
// swap back.
func (m *Machine) TransitionTo(target State, contextPatch map[string]any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, v := range contextPatch {
		m.context[k] = v
	}

	snap := m.snapshot()
	t := m.resolve(target, snap)
	if t == nil {
		logger.Warn("transition not allowed",
			"from", m.current.String(), "to", target.String())
		return false
	}

	from := m.current
	m.runStateCallbacks(m.onExit[from], from, snap)

	m.previous = from
	m.current = target
	m.entryTime = m.now()

	committed := m.snapshot()
	m.history = append(m.history, HistoryEntry{
		From:      from,
		To:        target,
		Timestamp: m.entryTime,
		Context:   committed,
	})
	if len(m.history) > m.historyLimit {
		m.history = m.history[len(m.history)-m.historyLimit:]
	}

	for _, action := range t.Actions {
		m.runAction(action, committed)
	}
	m.runStateCallbacks(m.onEnter[target], target, committed)
	for _, cb := range m.onAny {
		m.runTransitionCallback(cb, from, target, committed)
	}

	if m.bus != nil {
		m.emitStateChange(from, target)
	}

	logger.Info("state transition", "from", from.String(), "to", target.String())
	return true
}

// CanTransitionTo reports whether TransitionTo(target, nil) would currently
// succeed, without committing anything.
func (m *Machine) CanTransitionTo(target State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolve(target, m.snapshot()) != nil
}

// AllowedTransitions enumerates every state reachable from the current one
// whose guard presently passes, direct edges first, then globals.
func (m *Machine) AllowedTransitions() []State {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	var allowed []State
	for to, t := range m.transitions[m.current] {
		if t.allowed(snap) {
			allowed = append(allowed, to)
		}
	}
	for _, t := range m.global {
		if t.allowed(snap) {
			allowed = append(allowed, t.ToState)
		}
	}
	return allowed
}

// RegisterEnterCallback runs cb every time the machine enters state.
func (m *Machine) RegisterEnterCallback(state State, cb StateCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEnter[state] = append(m.onEnter[state], cb)
}

// RegisterExitCallback runs cb every time the machine leaves state.
func (m *Machine) RegisterExitCallback(state State, cb StateCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExit[state] = append(m.onExit[state], cb)
}

// RegisterTransitionCallback runs cb on every committed transition.
func (m *Machine) RegisterTransitionCallback(cb TransitionCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAny = append(m.onAny, cb)
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Previous returns the state before the last committed transition.
func (m *Machine) Previous() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.previous
}

// StateDuration returns how long the machine has been in its current state.
func (m *Machine) StateDuration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now().Sub(m.entryTime)
}

// IsStateExpired reports whether the current state has outlived its typical
// duration. States without a configured duration never expire.
func (m *Machine) IsStateExpired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	typical, ok := m.current.TypicalDuration()
	if !ok {
		return false
	}
	return m.now().Sub(m.entryTime) > typical
}

// ContextValue reads a key from the shared context. The context is only
// ever written through TransitionTo patches.
func (m *Machine) ContextValue(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.context[key]
	return v, ok
}

// History returns a copy of the retained transition history, oldest first.
func (m *Machine) History() []HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]HistoryEntry, len(m.history))
	copy(out, m.history)
	return out
}

// StateInfo returns an introspection bundle for the current state.
func (m *Machine) StateInfo() StateInfo {
	m.mu.Lock()

	snap := m.snapshot()
	var allowed []State
	for to, t := range m.transitions[m.current] {
		if t.allowed(snap) {
			allowed = append(allowed, to)
		}
	}
	for _, t := range m.global {
		if t.allowed(snap) {
			allowed = append(allowed, t.ToState)
		}
	}

	current := m.current
	previous := m.previous
	entry := m.entryTime
	duration := m.now().Sub(entry)
	typical, bounded := current.TypicalDuration()
	m.mu.Unlock()

	return StateInfo{
		Current:            current,
		Previous:           previous,
		Duration:           duration,
		EntryTime:          entry,
		Expired:            bounded && duration > typical,
		Description:        current.Description(),
		Cue:                current.Cue(),
		CanInterrupt:       current.CanInterrupt(),
		Weight:             current.Weight(),
		AllowedTransitions: allowed,
	}
}

// snapshot deep-copies the context so guards and callbacks cannot observe
// or introduce later mutations. Callers hold m.mu.
func (m *Machine) snapshot() Snapshot {
	snap := Snapshot{}
	if err := copier.CopyWithOption(&snap, m.context, copier.Option{DeepCopy: true}); err != nil {
		logger.Error("context snapshot failed, falling back to shallow copy", "error", err)
		for k, v := range m.context {
			snap[k] = v
		}
	}
	return snap
}

func (m *Machine) runStateCallbacks(cbs []StateCallback, state State, snap Snapshot) {
	for _, cb := range cbs {
		func() {
			defer func() {
				if recovered := recover(); recovered != nil {
					logger.Error("state callback panicked",
						"state", state.String(), "panic", recovered)
				}
			}()
			cb(state, snap)
		}()
	}
}

func (m *Machine) runTransitionCallback(cb TransitionCallback, from, to State, snap Snapshot) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("transition callback panicked",
				"from", from.String(), "to", to.String(), "panic", recovered)
		}
	}()
	cb(from, to, snap)
}

func (m *Machine) runAction(action Action, snap Snapshot) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("transition action panicked", "panic", recovered)
		}
	}()
	if err := action(snap); err != nil {
		logger.Error("transition action failed", "error", err)
	}
}

// emitStateChange posts the committed transition onto the bound bus.
// Only JSON-primitive context values travel on the event. Callers hold
// m.mu; the post itself does not re-enter the machine.
func (m *Machine) emitStateChange(from, to State) {
	e := events.New(events.TypeStateChange,
		events.WithSource("state_machine"),
		events.WithData(map[string]any{
			"previous_state":  from.String(),
			"new_state":       to.String(),
			"transition_time": float64(m.entryTime.UnixNano()) / float64(time.Second),
			"context":         primitiveContext(m.context),
		}),
	)
	if !m.bus.PostEvent(e) {
		logger.Warn("state change event not queued",
			"from", from.String(), "to", to.String())
	}
}

// primitiveContext keeps only values that serialize as JSON primitives or
// containers of them; any slice or map qualifies regardless of its element
// type.
func primitiveContext(ctx map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range ctx {
		switch v.(type) {
		case string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
			out[k] = v
			continue
		}
		switch reflect.ValueOf(v).Kind() {
		case reflect.Slice, reflect.Array, reflect.Map:
			out[k] = v
		}
	}
	return out
}

// installDefaultTransitions declares the standard assistant lifecycle
// edges. SHUTTING_DOWN is terminal and has no outgoing edges.
func (m *Machine) installDefaultTransitions() {
	add := func(from State, to ...State) {
		for _, t := range to {
			from := from
			m.transitions[from] = ensure(m.transitions[from])
			m.transitions[from][t] = &Transition{FromState: &from, ToState: t}
		}
	}

	add(StateInitializing, StateReady, StateError)
	add(StateReady, StateListening, StateProcessing, StateMonitoring, StatePaused, StateShuttingDown, StateError)
	add(StateListening, StateProcessing, StateReady, StateError)
	add(StateProcessing, StateResponding, StateExecutingTask, StateWaiting, StateControllingDevices, StateReady, StateError)
	add(StateResponding, StateSpeaking, StateReady, StateError)
	add(StateSpeaking, StateReady, StateListening, StateError)
	add(StateExecutingTask, StateReady, StateResponding, StateWaiting, StateError)
	add(StateMonitoring, StateReady, StateListening, StateProcessing, StateError)
	add(StateWaiting, StateProcessing, StateReady, StateError)
	add(StateControllingDevices, StateResponding, StateReady, StateError)
	add(StateLearning, StateReady, StateError)
	add(StatePaused, StateReady, StateShuttingDown, StateError)
	add(StateError, StateReady, StateShuttingDown)

	m.global = append(m.global, &Transition{
		ToState:     StateError,
		Guard:       func(snap Snapshot) bool { return snap.Bool("critical_error") },
		Description: "Critical error occurred",
	})
}

func ensure(byTarget map[State]*Transition) map[State]*Transition {
	if byTarget == nil {
		return map[State]*Transition{}
	}
	return byTarget
}
