package node

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/horus-robotics/horus-go/platform"
)

// HeartbeatState mirrors the node lifecycle states external tooling
// inspects via the heartbeat file.
type HeartbeatState uint8

const (
	StateStarting HeartbeatState = iota
	StateRunning
	StatePaused
	StateError
	StateStopped
)

// heartbeatSize is the fixed on-disk heartbeat record size.
const heartbeatSize = 256

// Heartbeat writes a fixed 256-byte record for a node at a configurable
// cadence, readable by external health-monitoring tooling without going
// through the scheduler.
type Heartbeat struct {
	nodeName string
	period   time.Duration
	path     string
	last     time.Time
}

// NewHeartbeat returns a writer for nodeName, defaulting to a 1 Hz
// cadence when period is zero.
func NewHeartbeat(nodeName string, period time.Duration) (*Heartbeat, error) {
	if period <= 0 {
		period = time.Second
	}
	if err := platform.EnsureDirs(); err != nil {
		return nil, err
	}
	return &Heartbeat{nodeName: nodeName, period: period, path: platform.HeartbeatFilePath(nodeName)}, nil
}

// Due reports whether at least one period has elapsed since the last
// write, so callers can gate writes to the configured cadence.
func (h *Heartbeat) Due(now time.Time) bool {
	return now.Sub(h.last) >= h.period
}

// Write serializes and writes the current heartbeat record, unconditional
// of Due — callers wishing to respect the cadence should check Due first.
func (h *Heartbeat) Write(state HeartbeatState, lastTickDur time.Duration, topicSummary string) error {
	buf := make([]byte, heartbeatSize)

	binary.LittleEndian.PutUint64(buf[0:8], uint64(time.Now().UnixNano()))
	buf[8] = byte(state)
	binary.LittleEndian.PutUint64(buf[9:17], uint64(lastTickDur.Microseconds()))

	summary := []byte(topicSummary)
	const summaryOffset = 17
	maxSummary := heartbeatSize - summaryOffset
	if len(summary) > maxSummary {
		summary = summary[:maxSummary]
	}
	copy(buf[summaryOffset:], summary)

	if err := os.WriteFile(h.path, buf, 0o644); err != nil {
		return fmt.Errorf("node: write heartbeat for %q: %w", h.nodeName, err)
	}
	h.last = time.Now()
	return nil
}

// ReadHeartbeat parses a 256-byte heartbeat record for nodeName.
func ReadHeartbeat(nodeName string) (state HeartbeatState, timestamp time.Time, lastTickDur time.Duration, topicSummary string, err error) {
	path := platform.HeartbeatFilePath(nodeName)
	buf, err := os.ReadFile(path)
	if err != nil {
		return 0, time.Time{}, 0, "", fmt.Errorf("node: read heartbeat for %q: %w", nodeName, err)
	}
	if len(buf) < heartbeatSize {
		return 0, time.Time{}, 0, "", fmt.Errorf("node: heartbeat for %q is %d bytes, expected %d", nodeName, len(buf), heartbeatSize)
	}

	ts := int64(binary.LittleEndian.Uint64(buf[0:8]))
	state = HeartbeatState(buf[8])
	micros := binary.LittleEndian.Uint64(buf[9:17])
	const summaryOffset = 17
	end := summaryOffset
	for end < heartbeatSize && buf[end] != 0 {
		end++
	}
	return state, time.Unix(0, ts), time.Duration(micros) * time.Microsecond, string(buf[summaryOffset:end]), nil
}

// IsStale reports whether the heartbeat for nodeName is missing or older
// than 3x its expected period.
func IsStale(nodeName string, expectedPeriod time.Duration) bool {
	_, ts, _, _, err := ReadHeartbeat(nodeName)
	if err != nil {
		return true
	}
	return time.Since(ts) > 3*expectedPeriod
}
