// Package platform locates the per-OS shared-memory root HORUS uses for
// topic files, the log ring, heartbeats, and pubsub metadata, and derives
// the individual paths beneath it.
package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// BaseDir returns the platform-appropriate root for HORUS shared memory:
//   - Linux: /dev/shm/horus (tmpfs, fastest)
//   - macOS: /tmp/horus (no /dev/shm; /tmp is still fast for local IPC)
//   - Windows: %TEMP%\horus
//   - anything else: /tmp/horus
//
// HORUS_ROOT, when set, overrides the platform default outright.
func BaseDir() string {
	if root := os.Getenv("HORUS_ROOT"); root != "" {
		return root
	}
	switch runtime.GOOS {
	case "linux":
		return "/dev/shm/horus"
	case "darwin":
		return "/tmp/horus"
	case "windows":
		return filepath.Join(os.TempDir(), "horus")
	default:
		return "/tmp/horus"
	}
}

// TopicsDir is the directory holding one ring file per topic.
func TopicsDir() string {
	return filepath.Join(BaseDir(), "topics")
}

// SessionTopicsDir is the per-session overlay topics directory, used when
// a caller scopes topic resolution to a session id instead of the shared
// global namespace.
func SessionTopicsDir(sessionID string) string {
	return filepath.Join(BaseDir(), "sessions", sessionID, "topics")
}

// SessionDir is the root directory for a given session id.
func SessionDir(sessionID string) string {
	return filepath.Join(BaseDir(), "sessions", sessionID)
}

// HeartbeatsDir holds one 256-byte heartbeat file per node name.
func HeartbeatsDir() string {
	return filepath.Join(BaseDir(), "heartbeats")
}

// PubsubMetadataDir holds one JSON metadata file per topic, for external
// introspection tooling.
func PubsubMetadataDir() string {
	return filepath.Join(BaseDir(), "pubsub_metadata")
}

// LogRingPath is the single global log ring file, a sibling of BaseDir
// rather than a child of it. Under a HORUS_ROOT override it is that
// root's "_logs" sibling, preserving the same relationship.
func LogRingPath() string {
	if root := os.Getenv("HORUS_ROOT"); root != "" {
		return root + "_logs"
	}
	switch runtime.GOOS {
	case "linux":
		return "/dev/shm/horus_logs"
	case "darwin":
		return "/tmp/horus_logs"
	case "windows":
		return filepath.Join(os.TempDir(), "horus_logs")
	default:
		return "/tmp/horus_logs"
	}
}

// SanitizeTopicName replaces path- and scheme-hostile characters so a
// topic name can be used as a single path component.
func SanitizeTopicName(name string) string {
	r := strings.NewReplacer("/", "_", ":", "_")
	return r.Replace(name)
}

// TopicFilePath returns the ring file path for a topic name.
func TopicFilePath(name string) string {
	return filepath.Join(TopicsDir(), "horus_"+SanitizeTopicName(name))
}

// HeartbeatFilePath returns the heartbeat file path for a node name.
func HeartbeatFilePath(nodeName string) string {
	return filepath.Join(HeartbeatsDir(), SanitizeTopicName(nodeName))
}

// MetadataFilePath returns the metadata file path for a topic name.
func MetadataFilePath(topic string) string {
	return filepath.Join(PubsubMetadataDir(), SanitizeTopicName(topic)+".meta")
}

// HasNativeShm reports whether this platform backs BaseDir with a true
// tmpfs (RAM-backed) mount.
func HasNativeShm() bool {
	return runtime.GOOS == "linux"
}

// Name returns a human-readable platform name for diagnostics.
func Name() string {
	switch runtime.GOOS {
	case "linux":
		return "Linux"
	case "darwin":
		return "macOS"
	case "windows":
		return "Windows"
	default:
		return "Unix"
	}
}

// EnsureDirs creates the topics, heartbeats, and pubsub_metadata
// directories under BaseDir if they do not already exist.
func EnsureDirs() error {
	for _, dir := range []string{TopicsDir(), HeartbeatsDir(), PubsubMetadataDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
