package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Tracking: TrackingConfig{
			TickIntervalSeconds: 60,
			MinSessionSeconds:   1,
			TimeZone:            "Local",
		},
		Retention: RetentionConfig{
			Days:               90,
			PruneIntervalHours: 24,
		},
		Capture: CaptureConfig{
			AllowedSchemes:   []string{"http", "https"},
			ExcludeSensitive: false,
			AllowlistDomains: []string{},
			DenylistDomains:  []string{},
			DenylistRegex:    []string{},
		},
		Storage: StorageConfig{
			Path:              "~/.config/dwell",
			Backend:           BackendSQLite,
			SQLiteFile:        "dwell.db",
			DocumentFile:      "activity.json",
			SQLiteJournalMode: "wal",
		},
		Daemon: DaemonConfig{
			Host:           "127.0.0.1",
			Port:           8721,
			AuthToken:      "",
			MaxRequestSize: 1048576,
		},
		Logging: LoggingConfig{
			Level:  "info",
			File:   "",
			Format: "console",
		},
		Report: ReportConfig{
			TopN:         10,
			DefaultRange: "today",
		},
	}
}
