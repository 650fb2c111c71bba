package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 60, cfg.Tracking.TickIntervalSeconds)
	assert.Equal(t, 1, cfg.Tracking.MinSessionSeconds)
	assert.Equal(t, "Local", cfg.Tracking.TimeZone)
	assert.Equal(t, 90, cfg.Retention.Days)
	assert.Equal(t, 24, cfg.Retention.PruneIntervalHours)
	assert.Equal(t, []string{"http", "https"}, cfg.Capture.AllowedSchemes)
	assert.False(t, cfg.Capture.ExcludeSensitive)
	assert.Equal(t, "~/.config/dwell", cfg.Storage.Path)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, "dwell.db", cfg.Storage.SQLiteFile)
	assert.Equal(t, "activity.json", cfg.Storage.DocumentFile)
	assert.Equal(t, "wal", cfg.Storage.SQLiteJournalMode)
	assert.Equal(t, "127.0.0.1", cfg.Daemon.Host)
	assert.Equal(t, 8721, cfg.Daemon.Port)
	assert.Equal(t, 1048576, cfg.Daemon.MaxRequestSize)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Logging.File)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, 10, cfg.Report.TopN)
	assert.Equal(t, "today", cfg.Report.DefaultRange)

	require.NoError(t, cfg.Validate())
}

func TestDerivedDurations(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, time.Minute, cfg.TickInterval())
	assert.Equal(t, 90*24*time.Hour, cfg.RetentionWindow())
	assert.Equal(t, 24*time.Hour, cfg.PruneInterval())
	assert.Equal(t, "127.0.0.1:8721", cfg.DaemonAddr())
}

func TestDefaultDenylistIsPopulated(t *testing.T) {
	domains := DefaultDenylistDomains()
	assert.Greater(t, len(domains), 10)

	assert.Contains(t, domains, "chase.com")
	assert.Contains(t, domains, "1password.com")
	assert.Contains(t, domains, "mychart.com")

	assert.NotEmpty(t, DefaultDenylistRegex())
}

func TestLoadValidYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yamlContent := `
tracking:
  tick_interval_seconds: 30
  time_zone: "UTC"
retention:
  days: 30
  prune_interval_hours: 12
storage:
  backend: "document"
daemon:
  port: 9999
logging:
  level: "debug"
  format: "json"
`
	err := os.WriteFile(cfgPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	// Overridden values
	assert.Equal(t, 30, cfg.Tracking.TickIntervalSeconds)
	assert.Equal(t, "UTC", cfg.Tracking.TimeZone)
	assert.Equal(t, 30, cfg.Retention.Days)
	assert.Equal(t, 12, cfg.Retention.PruneIntervalHours)
	assert.Equal(t, BackendDocument, cfg.Storage.Backend)
	assert.Equal(t, 9999, cfg.Daemon.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Non-overridden values remain defaults
	assert.Equal(t, 1, cfg.Tracking.MinSessionSeconds)
	assert.Equal(t, "127.0.0.1", cfg.Daemon.Host)
	assert.Equal(t, "~/.config/dwell", cfg.Storage.Path)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadInvalidYAMLReturnsError(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	err := os.WriteFile(cfgPath, []byte(":::not valid yaml{{{"), 0644)
	require.NoError(t, err)

	_, err = Load(cfgPath)
	assert.Error(t, err)
}

func TestLoadNonExistentFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing", "config.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"zero tick":        "tracking:\n  tick_interval_seconds: 0\n",
		"zero min session": "tracking:\n  min_session_seconds: 0\n",
		"bad zone":         "tracking:\n  time_zone: \"Mars/Olympus_Mons\"\n",
		"zero retention":   "retention:\n  days: 0\n",
		"zero interval":    "retention:\n  prune_interval_hours: 0\n",
		"bad backend":      "storage:\n  backend: \"redis\"\n",
		"bad port":         "daemon:\n  port: 70000\n",
		"zero top n":       "report:\n  top_n: 0\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			cfgPath := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))
			_, err := Load(cfgPath)
			assert.Error(t, err)
		})
	}
}

func TestLoadOrCreateCreatesDefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "sub", "deep", "config.yaml")

	cfg, err := LoadOrCreateAt(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, 90, cfg.Retention.Days)
	assert.Equal(t, "127.0.0.1", cfg.Daemon.Host)

	_, statErr := os.Stat(cfgPath)
	assert.NoError(t, statErr)

	cfg2, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, cfg.Retention.Days, cfg2.Retention.Days)
	assert.Equal(t, cfg.Capture.AllowedSchemes, cfg2.Capture.AllowedSchemes)
}

func TestLoadOrCreateLoadsExistingFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yamlContent := `
retention:
  days: 7
`
	err := os.WriteFile(cfgPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	cfg, err := LoadOrCreateAt(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Retention.Days)
	assert.Equal(t, 60, cfg.Tracking.TickIntervalSeconds)
}

func TestLoadWithDenylist(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yamlContent := `
capture:
  denylist_domains:
    - "example.com"
    - "secret.org"
  denylist_regex:
    - "^internal\\."
`
	err := os.WriteFile(cfgPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com", "secret.org"}, cfg.Capture.DenylistDomains)
	assert.Equal(t, []string{`^internal\.`}, cfg.Capture.DenylistRegex)
}

func TestStorePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Path = "/var/lib/dwell"

	p, err := cfg.StorePath()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/dwell/dwell.db", p)

	cfg.Storage.Backend = BackendDocument
	p, err = cfg.StorePath()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/dwell/activity.json", p)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	p, err := ExpandPath("~/x/y")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x", "y"), p)

	p, err = ExpandPath("/abs/path")
	require.NoError(t, err)
	assert.Equal(t, "/abs/path", p)
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("retention:\n  days: 7\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 16)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, cfgPath, zerolog.Nop(), func(cfg *Config) { reloaded <- cfg })
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)

	// An invalid edit is skipped.
	require.NoError(t, os.WriteFile(cfgPath, []byte("retention:\n  days: 0\n"), 0644))
	require.NoError(t, os.WriteFile(cfgPath, []byte("retention:\n  days: 14\n"), 0644))

	// A write can surface as several events; a read between truncate and
	// write sees an empty (default) file, so wait for the final content.
	deadline := time.After(5 * time.Second)
	for found := false; !found; {
		select {
		case cfg := <-reloaded:
			assert.NotEqual(t, 0, cfg.Retention.Days)
			found = cfg.Retention.Days == 14
		case <-deadline:
			t.Fatal("config was not reloaded")
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
