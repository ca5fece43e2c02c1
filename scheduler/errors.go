package scheduler

import "errors"

var (
	// ErrLifecycleInit wraps a node's Init failure; fatal to startup.
	ErrLifecycleInit = errors.New("scheduler: node init failed")
	// ErrUnknownNode is returned by SetNodeRate/Tick for a name that was
	// never registered via Add.
	ErrUnknownNode = errors.New("scheduler: unknown node name")
	// ErrInvalidRate is returned by SetNodeRate for a non-positive rate.
	ErrInvalidRate = errors.New("scheduler: rate must be > 0 Hz")
	// ErrInvalidPriority is returned by Add for a negative priority.
	ErrInvalidPriority = errors.New("scheduler: priority must be >= 0")
)
