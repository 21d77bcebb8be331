package events

import "fmt"

// Priority orders events for dispatch and gates handler eligibility.
// Higher values dequeue first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

var priorityNames = [...]string{"LOW", "NORMAL", "HIGH", "CRITICAL"}

func (p Priority) String() string {
	if p < PriorityLow || p > PriorityCritical {
		return fmt.Sprintf("Priority(%d)", int(p))
	}
	return priorityNames[p]
}

// IsValid reports whether p is one of the four defined levels.
func (p Priority) IsValid() bool {
	return p >= PriorityLow && p <= PriorityCritical
}

// ParsePriority converts a serialized priority name back into a Priority.
func ParsePriority(name string) (Priority, error) {
	for i, n := range priorityNames {
		if n == name {
			return Priority(i), nil
		}
	}
	return 0, fmt.Errorf("unknown event priority %q", name)
}
