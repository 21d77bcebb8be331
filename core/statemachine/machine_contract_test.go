package statemachine

import (
	"slices"
	"testing"
	"time"

	"github.com/aurabot/aura-core/core/eventbus"
	"github.com/aurabot/aura-core/core/events"
)

func TestInitializingToReadySucceeds(t *testing.T) {
	m := New()

	if !m.TransitionTo(StateReady, nil) {
		t.Fatalf("expected INITIALIZING -> READY to succeed")
	}
	if got := m.Current(); got != StateReady {
		t.Fatalf("unexpected current state %s", got)
	}
	if got := m.Previous(); got != StateInitializing {
		t.Fatalf("unexpected previous state %s", got)
	}
}

func TestUndeclaredEdgeIsRejected(t *testing.T) {
	m := New()
	m.TransitionTo(StateReady, nil)
	m.TransitionTo(StateListening, nil)

	if m.TransitionTo(StateSpeaking, nil) {
		t.Fatalf("expected LISTENING -> SPEAKING to be rejected")
	}
	if got := m.Current(); got != StateListening {
		t.Fatalf("state changed on rejected transition: %s", got)
	}
}

func TestCriticalErrorGlobalTransition(t *testing.T) {
	// A machine with no direct edge to ERROR can only get there through the
	// guarded global transition.
	m := New(WithoutDefaultTransitions())
	m.AddTransition(StateInitializing, StateReady)
	m.AddGlobalTransition(StateError,
		WithGuard(func(snap Snapshot) bool { return snap.Bool("critical_error") }))

	if m.TransitionTo(StateError, nil) {
		t.Fatalf("global transition accepted without critical_error flag")
	}
	if m.TransitionTo(StateError, map[string]any{"critical_error": false}) {
		t.Fatalf("global transition accepted with critical_error=false")
	}
	if !m.TransitionTo(StateError, map[string]any{"critical_error": true}) {
		t.Fatalf("global transition rejected despite critical_error=true")
	}
	if got := m.Current(); got != StateError {
		t.Fatalf("unexpected state %s", got)
	}
}

func TestFailedDirectGuardShadowsGlobalTransition(t *testing.T) {
	m := New(WithoutDefaultTransitions())
	m.AddTransition(StateInitializing, StateError,
		WithGuard(func(snap Snapshot) bool { return false }))
	m.AddGlobalTransition(StateError)

	// The declared direct edge is authoritative: its failed guard rejects
	// the move instead of falling through to the unguarded global.
	if m.CanTransitionTo(StateError) {
		t.Fatalf("failed direct guard fell through to a global transition")
	}
	if m.TransitionTo(StateError, nil) {
		t.Fatalf("transition committed despite failed direct guard")
	}
	if got := m.Current(); got != StateInitializing {
		t.Fatalf("state changed on rejected transition: %s", got)
	}
}

func TestGlobalTransitionAppliesWithoutDirectEdge(t *testing.T) {
	m := New(WithoutDefaultTransitions())
	m.AddTransition(StateInitializing, StateError,
		WithGuard(func(snap Snapshot) bool { return false }))
	m.AddGlobalTransition(StatePaused,
		WithGuard(func(snap Snapshot) bool { return false }))
	m.AddGlobalTransition(StatePaused)

	// No direct edge to PAUSED: globals apply, skipping the guard-failing
	// one in favor of the passing one.
	if !m.TransitionTo(StatePaused, nil) {
		t.Fatalf("global transition rejected despite a passing global edge")
	}
	if got := m.Current(); got != StatePaused {
		t.Fatalf("unexpected state %s", got)
	}
}

func TestGuardSeesJustMergedContext(t *testing.T) {
	m := New(WithoutDefaultTransitions())

	var observed any
	m.AddTransition(StateInitializing, StateReady,
		WithGuard(func(snap Snapshot) bool {
			observed, _ = snap["probe"]
			return snap.Bool("armed")
		}))

	if !m.TransitionTo(StateReady, map[string]any{"armed": true, "probe": "merged"}) {
		t.Fatalf("expected guard to pass on just-merged context")
	}
	if observed != "merged" {
		t.Fatalf("guard did not observe merged patch, saw %v", observed)
	}
}

func TestGuardCannotMutateMachineContext(t *testing.T) {
	m := New(WithoutDefaultTransitions())
	m.AddTransition(StateInitializing, StateReady,
		WithGuard(func(snap Snapshot) bool {
			snap["smuggled"] = true
			return true
		}))

	m.TransitionTo(StateReady, nil)

	if _, ok := m.ContextValue("smuggled"); ok {
		t.Fatalf("guard mutation leaked into machine context")
	}
}

func TestCanTransitionToMatchesTransitionTo(t *testing.T) {
	m := New()
	m.TransitionTo(StateReady, nil)

	for _, target := range States() {
		can := m.CanTransitionTo(target)
		allowed := slices.Contains(m.AllowedTransitions(), target)
		if can != allowed {
			t.Fatalf("CanTransitionTo(%s)=%v disagrees with AllowedTransitions", target, can)
		}
	}

	if !m.CanTransitionTo(StateListening) {
		t.Fatalf("expected READY -> LISTENING to be allowed")
	}
	if m.CanTransitionTo(StateSpeaking) {
		t.Fatalf("expected READY -> SPEAKING to be rejected")
	}
	if got := m.Current(); got != StateReady {
		t.Fatalf("CanTransitionTo mutated state to %s", got)
	}
}

func TestShuttingDownIsTerminal(t *testing.T) {
	m := New()
	m.TransitionTo(StateReady, nil)
	m.TransitionTo(StateShuttingDown, nil)

	if got := m.AllowedTransitions(); len(got) != 0 {
		t.Fatalf("expected no transitions out of SHUTTING_DOWN, got %v", got)
	}
	if m.TransitionTo(StateReady, nil) {
		t.Fatalf("transition out of terminal state accepted")
	}
}

func TestStateExpiry(t *testing.T) {
	now := time.Now()
	m := New(WithClock(func() time.Time { return now }))
	m.TransitionTo(StateReady, nil)
	m.TransitionTo(StateListening, nil)

	if m.IsStateExpired() {
		t.Fatalf("state expired immediately on entry")
	}

	typical, ok := StateListening.TypicalDuration()
	if !ok {
		t.Fatalf("expected LISTENING to carry a typical duration")
	}

	now = now.Add(typical + time.Second)
	if !m.IsStateExpired() {
		t.Fatalf("state not expired after exceeding typical duration")
	}
}

func TestUnboundedStatesNeverExpire(t *testing.T) {
	now := time.Now()
	m := New(WithClock(func() time.Time { return now }))

	m.TransitionTo(StateReady, nil)
	now = now.Add(240 * time.Hour)
	if m.IsStateExpired() {
		t.Fatalf("READY should never expire")
	}
}

func TestCallbacksRunOnCommit(t *testing.T) {
	m := New()

	var order []string
	m.RegisterExitCallback(StateInitializing, func(s State, snap Snapshot) {
		order = append(order, "exit:"+s.String())
	})
	m.RegisterEnterCallback(StateReady, func(s State, snap Snapshot) {
		order = append(order, "enter:"+s.String())
	})
	m.RegisterTransitionCallback(func(from, to State, snap Snapshot) {
		order = append(order, "any:"+from.String()+">"+to.String())
	})

	m.TransitionTo(StateReady, nil)

	want := []string{"exit:INITIALIZING", "enter:READY", "any:INITIALIZING>READY"}
	if !slices.Equal(order, want) {
		t.Fatalf("callback order %v, want %v", order, want)
	}
}

func TestCallbackPanicDoesNotAbortCommit(t *testing.T) {
	m := New()

	entered := false
	m.RegisterExitCallback(StateInitializing, func(s State, snap Snapshot) {
		panic("exit callback exploded")
	})
	m.RegisterEnterCallback(StateReady, func(s State, snap Snapshot) {
		entered = true
	})

	if !m.TransitionTo(StateReady, nil) {
		t.Fatalf("transition failed because of callback panic")
	}
	if m.Current() != StateReady {
		t.Fatalf("state swap lost after callback panic")
	}
	if !entered {
		t.Fatalf("enter callback skipped after earlier panic")
	}
}

func TestHistoryIsBoundedAndOrdered(t *testing.T) {
	m := New(WithHistoryLimit(3))

	m.TransitionTo(StateReady, nil)
	m.TransitionTo(StateListening, nil)
	m.TransitionTo(StateProcessing, nil)
	m.TransitionTo(StateReady, nil)

	h := m.History()
	if len(h) != 3 {
		t.Fatalf("expected history bounded to 3, got %d", len(h))
	}
	if h[0].From != StateReady || h[0].To != StateListening {
		t.Fatalf("unexpected oldest retained entry %s -> %s", h[0].From, h[0].To)
	}
	if h[2].From != StateProcessing || h[2].To != StateReady {
		t.Fatalf("unexpected newest entry %s -> %s", h[2].From, h[2].To)
	}
}

func TestStateChangeEventEmission(t *testing.T) {
	bus := eventbus.New()
	m := New(WithEventBus(bus))

	// The bus is not started; PostEvent declines but still records history.
	m.TransitionTo(StateReady, map[string]any{
		"reason":   "startup",
		"attempt":  1,
		"warnings": []string{"slow disk"},
		"weights":  map[string]int{"voice": 2},
		"opaque":   struct{ x int }{1},
	})

	h := bus.History()
	if len(h) != 1 {
		t.Fatalf("expected one STATE_CHANGE event, got %d", len(h))
	}
	e := h[0]
	if e.Type != events.TypeStateChange {
		t.Fatalf("unexpected event type %s", e.Type)
	}
	if e.Source != "state_machine" {
		t.Fatalf("unexpected event source %q", e.Source)
	}
	if got := e.Get("previous_state", nil); got != "INITIALIZING" {
		t.Fatalf("unexpected previous_state %v", got)
	}
	if got := e.Get("new_state", nil); got != "READY" {
		t.Fatalf("unexpected new_state %v", got)
	}

	ctx, ok := e.Get("context", nil).(map[string]any)
	if !ok {
		t.Fatalf("expected context payload, got %T", e.Get("context", nil))
	}
	if ctx["reason"] != "startup" || ctx["attempt"] != 1 {
		t.Fatalf("primitive context values missing: %v", ctx)
	}
	if warnings, ok := ctx["warnings"].([]string); !ok || len(warnings) != 1 {
		t.Fatalf("typed slice dropped from event context: %v", ctx["warnings"])
	}
	if weights, ok := ctx["weights"].(map[string]int); !ok || weights["voice"] != 2 {
		t.Fatalf("typed map dropped from event context: %v", ctx["weights"])
	}
	if _, leaked := ctx["opaque"]; leaked {
		t.Fatalf("non-primitive context value leaked onto the event")
	}
}

func TestRejectedTransitionEmitsNothing(t *testing.T) {
	bus := eventbus.New()
	m := New(WithEventBus(bus))

	m.TransitionTo(StateSpeaking, nil)

	if got := len(bus.History()); got != 0 {
		t.Fatalf("rejected transition produced %d events", got)
	}
}

func TestInfoReflectsCurrentState(t *testing.T) {
	m := New()
	m.TransitionTo(StateReady, nil)
	m.TransitionTo(StateListening, nil)

	info := m.StateInfo()
	if info.Current != StateListening || info.Previous != StateReady {
		t.Fatalf("unexpected info states %s / %s", info.Current, info.Previous)
	}
	if info.Cue != "listening" {
		t.Fatalf("unexpected cue %q", info.Cue)
	}
	if !info.CanInterrupt {
		t.Fatalf("LISTENING should be interruptible")
	}
	if !slices.Contains(info.AllowedTransitions, StateProcessing) {
		t.Fatalf("expected PROCESSING among allowed transitions, got %v", info.AllowedTransitions)
	}
}

func TestStateDurationUsesClock(t *testing.T) {
	now := time.Now()
	m := New(WithClock(func() time.Time { return now }))

	m.TransitionTo(StateReady, nil)
	now = now.Add(42 * time.Second)

	if got := m.StateDuration(); got != 42*time.Second {
		t.Fatalf("expected 42s in state, got %v", got)
	}
}
