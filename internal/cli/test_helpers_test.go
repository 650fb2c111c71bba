package cli

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/runnerr0/dwell/internal/clock"
	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/storage"
)

// testNow is a Saturday afternoon in UTC.
var testNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// newTestEnv builds an env over a temp data dir with a fake clock at
// testNow, UTC date keys and a daemon port nothing listens on.
func newTestEnv(t *testing.T) (*env, *bytes.Buffer, *clock.Fake) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.Path = t.TempDir()
	cfg.Tracking.TimeZone = "UTC"
	cfg.Daemon.Port = unusedPort(t)

	var out bytes.Buffer
	clk := clock.NewFake(testNow)
	return &env{
		cfg:   cfg,
		log:   zerolog.Nop(),
		clock: clk,
		out:   &out,
	}, &out, clk
}

// newMemStore returns an empty in-memory document store.
func newMemStore(t *testing.T) *storage.DocumentStore {
	t.Helper()
	store, err := storage.NewDocumentStore("")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// seed records seconds for domain on the day daysAgo before testNow.
func seed(t *testing.T, store storage.Store, domain string, seconds int64, daysAgo int) {
	t.Helper()
	at := testNow.AddDate(0, 0, -daysAgo)
	require.NoError(t, store.RecordSession(context.Background(), storage.SessionRecord{
		Domain:  domain,
		Seconds: seconds,
		DateKey: storage.DateKey(at),
		At:      at,
	}))
}

// unusedPort returns a loopback port that was free a moment ago.
func unusedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

// writeConfig writes cfg to a temp config file and returns its path.
func writeConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
