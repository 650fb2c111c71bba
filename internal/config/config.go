package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default config file path.
const DefaultConfigPath = "~/.config/dwell/config.yaml"

// Storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendDocument = "document"
)

// Config holds all dwell configuration.
type Config struct {
	Tracking  TrackingConfig  `yaml:"tracking"`
	Retention RetentionConfig `yaml:"retention"`
	Capture   CaptureConfig   `yaml:"capture"`
	Storage   StorageConfig   `yaml:"storage"`
	Daemon    DaemonConfig    `yaml:"daemon"`
	Logging   LoggingConfig   `yaml:"logging"`
	Report    ReportConfig    `yaml:"report"`
}

type TrackingConfig struct {
	TickIntervalSeconds int    `yaml:"tick_interval_seconds"`
	MinSessionSeconds   int    `yaml:"min_session_seconds"`
	TimeZone            string `yaml:"time_zone"`
}

type RetentionConfig struct {
	Days               int `yaml:"days"`
	PruneIntervalHours int `yaml:"prune_interval_hours"`
}

type CaptureConfig struct {
	AllowedSchemes   []string `yaml:"allowed_schemes"`
	ExcludeSensitive bool     `yaml:"exclude_sensitive"`
	AllowlistDomains []string `yaml:"allowlist_domains"`
	DenylistDomains  []string `yaml:"denylist_domains"`
	DenylistRegex    []string `yaml:"denylist_regex"`
}

type StorageConfig struct {
	Path              string `yaml:"path"`
	Backend           string `yaml:"backend"`
	SQLiteFile        string `yaml:"sqlite_file"`
	DocumentFile      string `yaml:"document_file"`
	SQLiteJournalMode string `yaml:"sqlite_journal_mode"`
}

type DaemonConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	AuthToken      string `yaml:"auth_token"`
	MaxRequestSize int    `yaml:"max_request_size"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	File   string `yaml:"file"`
	Format string `yaml:"format"`
}

type ReportConfig struct {
	TopN         int    `yaml:"top_n"`
	DefaultRange string `yaml:"default_range"`
}

// Load reads a YAML config file at path and merges it with defaults.
// Returns an error if the file cannot be read, contains invalid YAML, or
// fails validation.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file: %w", err)
	}

	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Tracking.TickIntervalSeconds <= 0 {
		return fmt.Errorf("tracking.tick_interval_seconds must be positive, got %d", c.Tracking.TickIntervalSeconds)
	}
	if c.Tracking.MinSessionSeconds < 1 {
		return fmt.Errorf("tracking.min_session_seconds must be at least 1, got %d", c.Tracking.MinSessionSeconds)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Retention.Days <= 0 {
		return fmt.Errorf("retention.days must be positive, got %d", c.Retention.Days)
	}
	if c.Retention.PruneIntervalHours <= 0 {
		return fmt.Errorf("retention.prune_interval_hours must be positive, got %d", c.Retention.PruneIntervalHours)
	}
	switch c.Storage.Backend {
	case BackendSQLite, BackendDocument:
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", BackendSQLite, BackendDocument, c.Storage.Backend)
	}
	if c.Daemon.Port <= 0 || c.Daemon.Port > 65535 {
		return fmt.Errorf("daemon.port out of range: %d", c.Daemon.Port)
	}
	if c.Report.TopN <= 0 {
		return fmt.Errorf("report.top_n must be positive, got %d", c.Report.TopN)
	}
	return nil
}

// Location resolves tracking.time_zone. Date keys are computed in it.
func (c *Config) Location() (*time.Location, error) {
	switch strings.TrimSpace(c.Tracking.TimeZone) {
	case "", "Local", "local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Tracking.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("tracking.time_zone: %w", err)
	}
	return loc, nil
}

// TickInterval is the flush period of the tracker.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Tracking.TickIntervalSeconds) * time.Second
}

// RetentionWindow is how far back day entries are kept.
func (c *Config) RetentionWindow() time.Duration {
	return time.Duration(c.Retention.Days) * 24 * time.Hour
}

// PruneInterval gates the startup retention sweep.
func (c *Config) PruneInterval() time.Duration {
	return time.Duration(c.Retention.PruneIntervalHours) * time.Hour
}

// DataDir returns storage.path with ~ expanded.
func (c *Config) DataDir() (string, error) {
	return ExpandPath(c.Storage.Path)
}

// StorePath returns the file backing the configured storage backend.
func (c *Config) StorePath() (string, error) {
	dir, err := c.DataDir()
	if err != nil {
		return "", err
	}
	if c.Storage.Backend == BackendDocument {
		return filepath.Join(dir, c.Storage.DocumentFile), nil
	}
	return filepath.Join(dir, c.Storage.SQLiteFile), nil
}

// DaemonAddr is the host:port the ingest daemon listens on.
func (c *Config) DaemonAddr() string {
	return fmt.Sprintf("%s:%d", c.Daemon.Host, c.Daemon.Port)
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := ExpandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}
