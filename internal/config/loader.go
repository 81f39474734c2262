package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config,
// defaults. Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*TrackerConfig, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Merge global config if exists
	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	// Merge project config if exists (highest precedence)
	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: ~/.trackerd/config.json
// Project: .trackerd/config.json (relative to cwd)
func LoadDefault() (*TrackerConfig, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}

	globalPath := filepath.Join(homeDir, ".trackerd", "config.json")
	projectPath := filepath.Join(".trackerd", "config.json")

	return Load(globalPath, projectPath)
}

// mergeConfigFile reads a JSON config file and merges it into the base
// config. Missing files are silently skipped. Malformed JSON returns an
// error. Scalar fields override when set; seed lists replace wholesale
// when non-empty, so a project can define its own workflow.
func mergeConfigFile(base *TrackerConfig, path string) error {
	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Missing file is not an error
	}

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	// Parse JSON
	var loaded TrackerConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if loaded.Server.Host != "" {
		base.Server.Host = loaded.Server.Host
	}
	if loaded.Server.Port != 0 {
		base.Server.Port = loaded.Server.Port
	}
	if loaded.Database.Path != "" {
		base.Database.Path = loaded.Database.Path
	}
	if len(loaded.Seed.Statuses) > 0 {
		base.Seed.Statuses = loaded.Seed.Statuses
	}
	if len(loaded.Seed.TaskTypes) > 0 {
		base.Seed.TaskTypes = loaded.Seed.TaskTypes
	}
	if len(loaded.Seed.Priorities) > 0 {
		base.Seed.Priorities = loaded.Seed.Priorities
	}

	return nil
}
