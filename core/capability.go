package orchestration

import "context"

// Capability names an action a component can be asked to perform. The set
// is closed: dispatch goes through an explicit table per component, and an
// unknown capability is rejected as a typed error rather than probed at
// runtime.
type Capability string

const (
	CapabilitySpeak         Capability = "speak"
	CapabilityListen        Capability = "listen"
	CapabilityCaptureScreen Capability = "capture_screen"
	CapabilityAnalyzeScreen Capability = "analyze_screen"
	CapabilityExecuteTask   Capability = "execute_task"
	CapabilityControlDevice Capability = "control_device"
	CapabilityRunRoutine    Capability = "run_routine"
	CapabilitySetPresence   Capability = "set_presence"
)

var knownCapabilities = map[Capability]struct{}{
	CapabilitySpeak:         {},
	CapabilityListen:        {},
	CapabilityCaptureScreen: {},
	CapabilityAnalyzeScreen: {},
	CapabilityExecuteTask:   {},
	CapabilityControlDevice: {},
	CapabilityRunRoutine:    {},
	CapabilitySetPresence:   {},
}

// IsValid reports whether c belongs to the closed capability set.
func (c Capability) IsValid() bool {
	_, ok := knownCapabilities[c]
	return ok
}

func (c Capability) String() string { return string(c) }

// CapabilityFunc executes one capability with the given arguments.
type CapabilityFunc func(ctx context.Context, args map[string]any) (any, error)

// CapabilityProvider is implemented by components that expose invokable
// capabilities through an explicit dispatch table.
type CapabilityProvider interface {
	// Capabilities returns the component's dispatch table. Keys outside
	// the closed capability set are ignored by the orchestrator.
	Capabilities() map[Capability]CapabilityFunc
}
