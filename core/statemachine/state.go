package statemachine

import (
	"fmt"
	"time"
)

// State is one of the assistant's operational states. The set is closed;
// SHUTTING_DOWN is terminal.
type State string

const (
	// System states.
	StateInitializing State = "INITIALIZING"
	StateReady        State = "READY"
	StateShuttingDown State = "SHUTTING_DOWN"
	StateError        State = "ERROR"

	// Interaction states.
	StateListening  State = "LISTENING"
	StateProcessing State = "PROCESSING"
	StateResponding State = "RESPONDING"
	StateSpeaking   State = "SPEAKING"

	// Task states.
	StateExecutingTask State = "EXECUTING_TASK"
	StateMonitoring    State = "MONITORING"
	StateWaiting       State = "WAITING"

	// Smart home states.
	StateControllingDevices State = "CONTROLLING_DEVICES"

	// Special states.
	StateLearning State = "LEARNING"
	StatePaused   State = "PAUSED"
)

// stateMeta carries the static per-state metadata consulted for expiry,
// interruption policy and the presence layer.
type stateMeta struct {
	description  string
	canInterrupt bool
	// typicalDuration of zero means the state never expires.
	typicalDuration time.Duration
	cue             string
	weight          int
}

var stateMetadata = map[State]stateMeta{
	StateInitializing: {"Starting up and loading components", false, 10 * time.Second, "idle", 80},
	StateReady:        {"Idle and waiting for commands", true, 0, "idle", 5},
	StateShuttingDown: {"Shutting down gracefully", false, 0, "idle", 90},
	StateError:        {"Encountered an error", false, 0, "error", 100},

	StateListening:  {"Actively listening for voice commands", true, 10 * time.Second, "listening", 50},
	StateProcessing: {"Processing a request or command", true, 5 * time.Second, "thinking", 40},
	StateResponding: {"Preparing a response", true, 3 * time.Second, "talking", 60},
	StateSpeaking:   {"Speaking a response", true, 0, "talking", 70},

	StateExecutingTask: {"Executing an automation task", true, 0, "working", 30},
	StateMonitoring:    {"Monitoring the environment", true, 0, "idle", 10},
	StateWaiting:       {"Waiting for external input", true, 30 * time.Second, "waiting", 20},

	StateControllingDevices: {"Controlling smart home devices", true, 0, "working", 25},

	StateLearning: {"Learning from feedback", true, 0, "thinking", 15},
	StatePaused:   {"Operation temporarily paused", true, 0, "idle", 1},
}

// IsValid reports whether s belongs to the closed state set.
func (s State) IsValid() bool {
	_, ok := stateMetadata[s]
	return ok
}

func (s State) String() string { return string(s) }

// ParseState converts a serialized state name back into a State.
func ParseState(name string) (State, error) {
	s := State(name)
	if !s.IsValid() {
		return "", fmt.Errorf("unknown state %q", name)
	}
	return s, nil
}

// Description returns the human-readable summary of the state.
func (s State) Description() string {
	return stateMetadata[s].description
}

// CanInterrupt reports whether user input may interrupt the state.
func (s State) CanInterrupt() bool {
	return stateMetadata[s].canInterrupt
}

// TypicalDuration returns how long the state usually lasts. ok is false for
// states with no bounded duration; such states never expire.
func (s State) TypicalDuration() (d time.Duration, ok bool) {
	meta := stateMetadata[s]
	return meta.typicalDuration, meta.typicalDuration > 0
}

// Cue names the presence animation associated with the state.
func (s State) Cue() string {
	if meta, ok := stateMetadata[s]; ok {
		return meta.cue
	}
	return "idle"
}

// Weight returns the state's precedence; higher values take priority when
// competing states are proposed.
func (s State) Weight() int {
	return stateMetadata[s].weight
}

// States returns every member of the closed state set. The order is not
// specified.
func States() []State {
	out := make([]State, 0, len(stateMetadata))
	for s := range stateMetadata {
		out = append(out, s)
	}
	return out
}
