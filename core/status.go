package orchestration

// Status tracks a registered component's lifecycle stage as seen by the
// orchestrator.
type Status int

const (
	StatusUninitialized Status = iota
	StatusInitializing
	StatusReady
	StatusError
	StatusPaused
	StatusShutdown
)

var statusNames = [...]string{
	"UNINITIALIZED",
	"INITIALIZING",
	"READY",
	"ERROR",
	"PAUSED",
	"SHUTDOWN",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "UNKNOWN"
	}
	return statusNames[s]
}
