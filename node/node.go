// Package node defines the lifecycle contract the scheduler drives:
// arbitrary user types exposing Name/Init/Tick/Shutdown.
package node

import (
	"fmt"
	"time"

	"github.com/horus-robotics/horus-go/logring"
)

// Node is the capability set the scheduler drives. Any user type
// implementing it can be registered — the scheduler holds a
// heterogeneous slice of Node values, never a closed set of concrete
// types.
type Node interface {
	// Name is a stable string used as the key for logging, metrics, and
	// filtering.
	Name() string
	// Init runs once before the first Tick. An error aborts scheduler
	// startup.
	Init(ctx *Context) error
	// Tick runs once per scheduler step. Panics are caught by the
	// scheduler and turn into an Error-state transition for this node
	// only; other nodes continue.
	Tick(ctx *Context)
	// Shutdown runs once after the last Tick. Errors are logged but do
	// not prevent shutdown of the remaining nodes.
	Shutdown(ctx *Context) error
}

// Context is the per-tick handle passed to Tick (and, for symmetry, to
// Init/Shutdown). It carries the node's identity, timing, and logging
// helpers that emit logring.Record values when logging is enabled for
// this node.
type Context struct {
	NodeName      string
	TickIndex     uint64
	LastTickDur   time.Duration
	LoggingOn     bool

	logs *logring.Ring
}

// NewContext constructs a Context. logs may be nil, in which case the
// Log* helpers are no-ops regardless of LoggingOn.
func NewContext(nodeName string, logs *logring.Ring) *Context {
	return &Context{NodeName: nodeName, logs: logs}
}

func (c *Context) push(kind logring.Kind, message string) {
	if !c.LoggingOn || c.logs == nil {
		return
	}
	rec := logring.NewRecord(c.NodeName, kind, "", message)
	rec.TickMicros = uint64(c.LastTickDur.Microseconds())
	c.logs.Push(rec)
}

// LogDebug emits a Debug-kind record if logging is enabled for this node.
func (c *Context) LogDebug(message string) { c.push(logring.KindDebug, message) }

// LogInfo emits an Info-kind record if logging is enabled for this node.
func (c *Context) LogInfo(message string) { c.push(logring.KindInfo, message) }

// LogWarning emits a Warning-kind record if logging is enabled for this node.
func (c *Context) LogWarning(message string) { c.push(logring.KindWarning, message) }

// LogError emits an Error-kind record if logging is enabled for this node.
func (c *Context) LogError(message string) { c.push(logring.KindError, message) }

// LogDebugf/LogInfof/LogWarningf/LogErrorf are Printf-style conveniences.
func (c *Context) LogDebugf(format string, args ...any)   { c.LogDebug(fmt.Sprintf(format, args...)) }
func (c *Context) LogInfof(format string, args ...any)    { c.LogInfo(fmt.Sprintf(format, args...)) }
func (c *Context) LogWarningf(format string, args ...any) { c.LogWarning(fmt.Sprintf(format, args...)) }
func (c *Context) LogErrorf(format string, args ...any)   { c.LogError(fmt.Sprintf(format, args...)) }
