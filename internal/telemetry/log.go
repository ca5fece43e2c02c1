// Package telemetry wraps zerolog into the one process-wide structured
// logger threaded through shm, scheduler, and backend for lifecycle
// diagnostics — separate from logring, which is the cross-process record
// ring nodes opt into individually.
package telemetry

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
)

// Set replaces the process-wide logger, for a caller that wants to
// install a configured logger (level, output format) at startup.
func Set(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
}

// Get returns the current process-wide logger.
func Get() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Component returns a logger tagged with a "component" field, the
// convention every package here uses for its own diagnostics.
func Component(name string) zerolog.Logger {
	return Get().With().Str("component", name).Logger()
}
