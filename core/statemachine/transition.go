package statemachine

// Snapshot is an immutable copy of the machine context handed to guards,
// actions and callbacks. Mutating a snapshot never affects the live
// context.
type Snapshot map[string]any

// Get returns a snapshot value, or def when the key is absent.
func (s Snapshot) Get(key string, def any) any {
	if v, ok := s[key]; ok {
		return v
	}
	return def
}

// Bool returns the snapshot value coerced to bool; absent or non-bool
// values read as false.
func (s Snapshot) Bool(key string) bool {
	v, _ := s[key].(bool)
	return v
}

// Guard decides whether a transition may fire. Guards must be pure
// functions of the snapshot: no side effects, no captured mutable state.
type Guard func(Snapshot) bool

// Action is a side effect run when a transition commits. A returned error
// is logged and isolated; the committed transition is not rolled back.
type Action func(Snapshot) error

// Transition is a declared edge between two states. A nil FromState marks
// a global transition usable from any current state. A nil Guard always
// passes.
type Transition struct {
	FromState   *State
	ToState     State
	Guard       Guard
	Actions     []Action
	Description string
}

// IsGlobal reports whether the transition applies from any state.
func (t *Transition) IsGlobal() bool { return t.FromState == nil }

// allowed evaluates the guard against the snapshot. A guard that panics
// counts as a failed guard.
func (t *Transition) allowed(snap Snapshot) (ok bool) {
	if t.Guard == nil {
		return true
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("transition guard panicked",
				"to", t.ToState.String(), "panic", recovered)
			ok = false
		}
	}()
	return t.Guard(snap)
}

// TransitionOption configures a declared transition.
type TransitionOption func(*Transition)

// WithGuard attaches a guard condition to the transition.
func WithGuard(g Guard) TransitionOption {
	return func(t *Transition) { t.Guard = g }
}

// WithActions appends side-effect actions run when the transition commits.
func WithActions(actions ...Action) TransitionOption {
	return func(t *Transition) { t.Actions = append(t.Actions, actions...) }
}

// WithDescription annotates the transition for introspection and logs.
func WithDescription(desc string) TransitionOption {
	return func(t *Transition) { t.Description = desc }
}
