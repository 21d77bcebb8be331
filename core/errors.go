package orchestration

import (
	"fmt"
	"strings"
)

// CyclicDependencyError reports that initialization ordering could not make
// progress. Remaining lists the components stuck in the cycle (or depending
// on one), sorted by name.
type CyclicDependencyError struct {
	Remaining []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic component dependency involving: %s",
		strings.Join(e.Remaining, ", "))
}

// UnknownComponentError reports a capability invocation addressed to a
// component that is not registered.
type UnknownComponentError struct {
	Component string
}

func (e *UnknownComponentError) Error() string {
	return fmt.Sprintf("unknown component %q", e.Component)
}

// UnknownCapabilityError reports a capability invocation that the addressed
// component does not provide.
type UnknownCapabilityError struct {
	Component  string
	Capability Capability
}

func (e *UnknownCapabilityError) Error() string {
	return fmt.Sprintf("component %q does not provide capability %q",
		e.Component, e.Capability)
}

// CriticalInitError reports that one or more critical components failed to
// initialize, which marks the whole startup as failed.
type CriticalInitError struct {
	Components []string
}

func (e *CriticalInitError) Error() string {
	return fmt.Sprintf("critical components failed to initialize: %s",
		strings.Join(e.Components, ", "))
}
