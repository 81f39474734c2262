package config

// DefaultConfig returns the default configuration with the built-in
// workflow. Status ranks mirror the reference workflow: a task moves
// forward one rank at a time and may reset to rank 1 from anywhere.
func DefaultConfig() *TrackerConfig {
	return &TrackerConfig{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8085,
		},
		Database: DatabaseConfig{
			Path: "tracker.db",
		},
		Seed: SeedConfig{
			Statuses: []StatusConfig{
				{Name: "To do", Number: 1},
				{Name: "In progress", Number: 2},
				{Name: "Code review", Number: 3},
				{Name: "Dev test", Number: 4},
				{Name: "Testing", Number: 5},
				{Name: "Done", Number: 6},
			},
			TaskTypes:  []string{"Bug", "Task", "Feature"},
			Priorities: []string{"Low", "Medium", "High"},
		},
	}
}
