// Package metadata writes and reads the small JSON descriptor files that
// accompany every topic ring, giving external tooling (a CLI, a
// visualizer) enough information to attach to a topic without parsing
// its binary header.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/horus-robotics/horus-go/platform"
)

// Meta describes one topic's ring geometry and payload kind.
type Meta struct {
	Topic        string `json:"topic"`
	SlotCount    uint32 `json:"slot_count"`
	SlotSize     uint32 `json:"slot_size"`
	MsgKind      uint32 `json:"msg_kind"`
	ProducerPID  int    `json:"producer_pid"`
	CreatedAtRFC string `json:"created_at"`
}

// Write serializes m to its topic's metadata file, creating the
// pubsub_metadata directory if needed.
func Write(m Meta) error {
	if err := platform.EnsureDirs(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("metadata: marshal %q: %w", m.Topic, err)
	}
	path := platform.MetadataFilePath(m.Topic)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("metadata: write %q: %w", path, err)
	}
	return nil
}

// Read loads the metadata file for topic.
func Read(topic string) (Meta, error) {
	path := platform.MetadataFilePath(topic)
	data, err := os.ReadFile(path)
	if err != nil {
		return Meta{}, fmt.Errorf("metadata: read %q: %w", path, err)
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return Meta{}, fmt.Errorf("metadata: parse %q: %w", path, err)
	}
	return m, nil
}

// List returns the topic names with a metadata file currently present.
func List() ([]string, error) {
	dir := platform.PubsubMetadataDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("metadata: list %q: %w", dir, err)
	}
	var topics []string
	for _, e := range entries {
		name := e.Name()
		const suffix = ".meta"
		if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
			topics = append(topics, name[:len(name)-len(suffix)])
		}
	}
	return topics, nil
}
