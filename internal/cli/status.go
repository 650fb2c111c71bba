package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"github.com/runnerr0/dwell/internal/daemon"
	"github.com/runnerr0/dwell/internal/report"
	"github.com/runnerr0/dwell/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version        string                 `json:"version"`
	ConfigPath     string                 `json:"config_path"`
	Backend        string                 `json:"backend"`
	StorePath      string                 `json:"store_path"`
	StoreSizeBytes int64                  `json:"store_size_bytes"`
	TotalDomains   int64                  `json:"total_domains"`
	TotalDays      int64                  `json:"total_days"`
	TotalSeconds   int64                  `json:"total_seconds"`
	OldestDay      string                 `json:"oldest_day,omitempty"`
	NewestDay      string                 `json:"newest_day,omitempty"`
	LastCleanup    string                 `json:"last_cleanup,omitempty"`
	RetentionDays  int                    `json:"retention_days"`
	TopDomains     []domainTimeJSON       `json:"top_domains"`
	DaemonRunning  bool                   `json:"daemon_running"`
	Daemon         *daemon.StatusResponse `json:"daemon,omitempty"`
}

type domainTimeJSON struct {
	Domain  string `json:"domain"`
	Seconds int64  `json:"seconds"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	return withStore(c.globals, c.store, func(e *env, store storage.Store) error {
		return c.executeWithStore(context.Background(), e, store)
	})
}

// executeWithStore runs status against a provided store (for testing).
func (c *StatusCommand) executeWithStore(ctx context.Context, e *env, store storage.Store) error {
	stats, err := store.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}
	storePath, err := e.cfg.StorePath()
	if err != nil {
		return err
	}
	daemonStatus := checkDaemon(e.cfg.DaemonAddr(), e.cfg.Daemon.AuthToken)

	if e.json {
		return c.printStatusJSON(e, stats, storePath, daemonStatus)
	}
	return c.printStatusHuman(e, stats, storePath, daemonStatus)
}

func (c *StatusCommand) printStatusHuman(e *env, stats *storage.Stats, storePath string, ds *daemon.StatusResponse) error {
	loc, err := e.cfg.Location()
	if err != nil {
		return err
	}

	e.printf("dwell status\n")
	e.printf("============\n")
	e.printf("Version:       %s\n", c.version)
	e.printf("Store:         %s (%s, %s)\n", storePath, e.cfg.Storage.Backend, formatBytes(stats.DatabaseSizeBytes))
	e.printf("Domains:       %s\n", formatNumber(stats.TotalDomains))
	e.printf("Days:          %s\n", formatNumber(stats.TotalDays))
	e.printf("Tracked time:  %s\n", report.FormatDuration(stats.TotalSeconds))
	if stats.TotalDays > 0 {
		e.printf("Oldest day:    %s\n", stats.OldestDay)
		e.printf("Newest day:    %s\n", stats.NewestDay)
	}
	e.printf("Retention:     %s\n", formatDays(e.cfg.Retention.Days))
	e.printf("Last cleanup:  %s\n", formatTime(stats.LastCleanup, loc))

	if len(stats.TopDomains) > 0 {
		e.printf("\nTop Domains:\n")
		for _, d := range stats.TopDomains {
			e.printf("  %-30s %s\n", d.Domain, report.FormatDuration(d.Seconds))
		}
	}

	e.printf("\n")
	switch {
	case ds == nil:
		e.printf("Daemon:        not running\n")
	case ds.Tracking != nil:
		e.printf("Daemon:        running, tracking %s\n", *ds.Tracking)
	default:
		e.printf("Daemon:        running, idle\n")
	}
	return nil
}

func (c *StatusCommand) printStatusJSON(e *env, stats *storage.Stats, storePath string, ds *daemon.StatusResponse) error {
	out := statusJSON{
		Version:        c.version,
		ConfigPath:     e.configPath,
		Backend:        e.cfg.Storage.Backend,
		StorePath:      storePath,
		StoreSizeBytes: stats.DatabaseSizeBytes,
		TotalDomains:   stats.TotalDomains,
		TotalDays:      stats.TotalDays,
		TotalSeconds:   stats.TotalSeconds,
		OldestDay:      stats.OldestDay,
		NewestDay:      stats.NewestDay,
		RetentionDays:  e.cfg.Retention.Days,
		TopDomains:     make([]domainTimeJSON, len(stats.TopDomains)),
		DaemonRunning:  ds != nil,
		Daemon:         ds,
	}
	if !stats.LastCleanup.IsZero() {
		out.LastCleanup = stats.LastCleanup.UTC().Format(time.RFC3339)
	}
	for i, d := range stats.TopDomains {
		out.TopDomains[i] = domainTimeJSON{Domain: d.Domain, Seconds: d.Seconds}
	}
	return e.printJSON(out)
}

// checkDaemon asks the daemon at addr for its status. It returns nil when
// nothing answers within a second.
func checkDaemon(addr, token string) *daemon.StatusResponse {
	client := &http.Client{Timeout: 1 * time.Second}
	req, err := http.NewRequest(http.MethodGet, "http://"+addr+"/status", nil)
	if err != nil {
		return nil
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil
	}
	var st daemon.StatusResponse
	if err := sonic.Unmarshal(body, &st); err != nil {
		return nil
	}
	return &st
}
