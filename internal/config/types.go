package config

// ServerConfig defines the HTTP listen address of the daemon.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DatabaseConfig locates the sqlite database file.
type DatabaseConfig struct {
	Path string `json:"path"`
}

// StatusConfig defines one workflow status to seed. Number is the rank:
// lower is earlier in the workflow.
type StatusConfig struct {
	Name   string `json:"name"`
	Number int    `json:"number"`
}

// SeedConfig defines the reference data inserted on startup if missing.
type SeedConfig struct {
	Statuses   []StatusConfig `json:"statuses,omitempty"`
	TaskTypes  []string       `json:"task_types,omitempty"`
	Priorities []string       `json:"priorities,omitempty"`
}

// TrackerConfig is the top-level configuration.
type TrackerConfig struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Seed     SeedConfig     `json:"seed"`
}
