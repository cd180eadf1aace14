package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads an arca.yaml file, expands ${VAR} references, and unmarshals it
// into a Config. Values from the file are defaults only; command line flags
// override them field by field when commands merge the two.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	expanded := ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}

	return &cfg, nil
}
