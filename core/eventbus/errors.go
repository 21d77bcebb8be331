package eventbus

import "errors"

var (
	// ErrAlreadyRunning is returned by Start when the worker pool is live.
	ErrAlreadyRunning = errors.New("event bus already running")

	// ErrNotRunning is returned by Stop when the bus was never started or
	// has already stopped.
	ErrNotRunning = errors.New("event bus not running")

	// ErrStopTimeout is returned by Stop when the workers did not exit
	// within the allowed timeout.
	ErrStopTimeout = errors.New("event bus stop timed out")
)
