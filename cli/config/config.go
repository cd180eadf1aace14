package config

import (
	"fmt"
	"time"
)

// Config represents an arca.yaml configuration file.
// All values are optional and act as defaults for CLI flags.
// CLI flags always override config values.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Creation  CreationConfig  `yaml:"creation"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// EngineConfig holds engine process defaults from the config file.
type EngineConfig struct {
	// Path is the engine binary. Defaults to arca-engine next to the CLI.
	Path string `yaml:"path"`
}

// CreationConfig holds archive creation defaults from the config file.
type CreationConfig struct {
	// Archiver is the external archiver binary used by the engine for
	// creation. Empty means built-in zip writing only.
	Archiver string `yaml:"archiver"`
	// ScratchDir overrides the staging directory root.
	ScratchDir string `yaml:"scratch_dir"`
	// CompressionLevel is the default level (0-9) when a command does not
	// set one.
	CompressionLevel *int `yaml:"compression_level,omitempty"`
}

// TelemetryConfig holds telemetry sink defaults from the config file.
type TelemetryConfig struct {
	Type    string            `yaml:"type"` // none, webhook, redis
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
