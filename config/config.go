// Package config loads the TOML configuration describing a process's
// nodes and topics.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the top-level shape of a horus config.toml: one entry per
// node this process runs, one entry per topic it wants a non-default
// geometry for.
type Config struct {
	Nodes  map[string]NodeConfig  `toml:"nodes"`
	Topics map[string]TopicConfig `toml:"topics"`
}

// NodeConfig describes how the scheduler should register one node:
// its priority band, optional tick rate, and default logging posture.
type NodeConfig struct {
	Enabled  bool    `toml:"enabled"`
	Priority int     `toml:"priority"`
	RateHz   float64 `toml:"rate_hz"`
	Logging  bool    `toml:"logging"`
}

// TopicConfig overrides a topic's default ring geometry.
type TopicConfig struct {
	SlotCount int `toml:"slot_count"`
	SlotSize  int `toml:"slot_size"`
}

// Load reads and parses a TOML config file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}

	return &c, nil
}

// ResolvePath returns the config path to load: the HORUS_CONFIG
// environment variable if set, otherwise the given default. This keeps
// the same env-override-wins precedence the original feeder binary used
// for its own config path.
func ResolvePath(defaultPath string) string {
	if p := os.Getenv("HORUS_CONFIG"); p != "" {
		return p
	}
	return defaultPath
}
