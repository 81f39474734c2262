package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, name string, cfg *TrackerConfig) string {
	t.Helper()
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("failed to marshal config: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8085 {
		t.Errorf("default port = %d, want 8085", cfg.Server.Port)
	}
	if len(cfg.Seed.Statuses) != 6 {
		t.Errorf("expected 6 default statuses, got %d", len(cfg.Seed.Statuses))
	}
	if cfg.Seed.Statuses[0].Name != "To do" || cfg.Seed.Statuses[0].Number != 1 {
		t.Errorf("unexpected first status: %+v", cfg.Seed.Statuses[0])
	}
}

func TestLoadMissingFilesAreNotErrors(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "absent.json"), filepath.Join(dir, "also-absent.json"))
	if err != nil {
		t.Fatalf("Load failed on missing files: %v", err)
	}
	if cfg.Database.Path != "tracker.db" {
		t.Errorf("expected default database path, got %q", cfg.Database.Path)
	}
}

func TestLoadMergePrecedence(t *testing.T) {
	dir := t.TempDir()

	globalPath := writeConfig(t, dir, "global.json", &TrackerConfig{
		Server:   ServerConfig{Port: 9000},
		Database: DatabaseConfig{Path: "/var/lib/tracker/global.db"},
	})
	projectPath := writeConfig(t, dir, "project.json", &TrackerConfig{
		Server: ServerConfig{Port: 9100},
		Seed: SeedConfig{
			Statuses: []StatusConfig{
				{Name: "Open", Number: 1},
				{Name: "Closed", Number: 2},
			},
		},
	})

	cfg, err := Load(globalPath, projectPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Project beats global beats defaults.
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, want project value 9100", cfg.Server.Port)
	}
	// Global value survives where project is silent.
	if cfg.Database.Path != "/var/lib/tracker/global.db" {
		t.Errorf("database path = %q, want global value", cfg.Database.Path)
	}
	// Default host survives where both are silent.
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("host = %q, want default", cfg.Server.Host)
	}
	// Seed lists replace wholesale.
	if len(cfg.Seed.Statuses) != 2 || cfg.Seed.Statuses[1].Name != "Closed" {
		t.Errorf("unexpected seed statuses: %+v", cfg.Seed.Statuses)
	}
	// Untouched seed lists keep defaults.
	if len(cfg.Seed.TaskTypes) != 3 {
		t.Errorf("expected default task types, got %v", cfg.Seed.TaskTypes)
	}
}

func TestLoadMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	if _, err := Load(path, ""); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Server.Port = 7777
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Server.Port != 7777 {
		t.Errorf("round-tripped port = %d, want 7777", loaded.Server.Port)
	}
}
