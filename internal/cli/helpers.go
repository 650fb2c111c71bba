package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"github.com/runnerr0/dwell/internal/aggregator"
	"github.com/runnerr0/dwell/internal/clock"
	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/logging"
	"github.com/runnerr0/dwell/internal/storage"
)

// env is what every command needs once flags are parsed.
type env struct {
	cfg        *config.Config
	configPath string
	log        zerolog.Logger
	clock      clock.Clock
	out        io.Writer
	json       bool

	logCloser io.Closer
}

// loadEnv resolves the config file (creating it with defaults when missing)
// and builds the logger.
func loadEnv(globals *GlobalFlags) (*env, error) {
	path := config.DefaultConfigPath
	if globals != nil && globals.Config != "" {
		path = globals.Config
	}
	path, err := config.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadOrCreateAt(path)
	if err != nil {
		return nil, err
	}

	verbose := globals != nil && globals.Verbose
	log, closer, err := logging.New(cfg.Logging, verbose)
	if err != nil {
		return nil, err
	}

	return &env{
		cfg:        cfg,
		configPath: path,
		log:        log,
		clock:      clock.System{},
		out:        os.Stdout,
		json:       globals != nil && globals.JSON,
		logCloser:  closer,
	}, nil
}

func (e *env) close() {
	if e.logCloser != nil {
		e.logCloser.Close()
	}
}

// openStore opens the configured backend.
func (e *env) openStore() (storage.Store, error) {
	path, err := e.cfg.StorePath()
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(e.cfg.Storage.Backend, path, e.cfg.Storage.SQLiteJournalMode)
	if err != nil {
		return nil, err
	}
	e.log.Debug().Str("backend", e.cfg.Storage.Backend).Str("path", path).Msg("store opened")
	return store, nil
}

// aggregator builds an Aggregator over store using the configured
// retention and time zone.
func (e *env) aggregator(store storage.Store) (*aggregator.Aggregator, error) {
	loc, err := e.cfg.Location()
	if err != nil {
		return nil, err
	}
	opts := aggregator.Options{
		RetentionDays: e.cfg.Retention.Days,
		PruneInterval: e.cfg.PruneInterval(),
		Location:      loc,
	}
	return aggregator.New(store, e.clock, opts, logging.Component(e.log, "aggregator")), nil
}

// printJSON writes v as indented JSON.
func (e *env) printJSON(v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(e.out, string(data))
	return err
}

func (e *env) printf(format string, args ...any) {
	fmt.Fprintf(e.out, format, args...)
}

// parseDays parses a retention window like "30d", "2w" or "90" (days).
func parseDays(s string) (int, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("invalid duration: empty string")
	}

	mult := 1
	switch s[len(s)-1] {
	case 'd':
		s = s[:len(s)-1]
	case 'w':
		mult = 7
		s = s[:len(s)-1]
	}

	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid duration: %q (use a positive number of days, e.g. 30d or 2w)", s)
	}
	return n * mult, nil
}

// formatDays formats a day count like "30 days".
func formatDays(days int) string {
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatNumber formats an int64 with comma separators.
func formatNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}

	var result strings.Builder
	if neg {
		result.WriteString("-")
	}
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if i > 0 {
			result.WriteString(",")
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

// formatTime renders t in the report location, or "never".
func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "never"
	}
	return t.In(loc).Format("2006-01-02 15:04")
}

// withStore loads the environment, opens the configured store unless one
// was injected, and runs fn.
func withStore(globals *GlobalFlags, injected storage.Store, fn func(e *env, store storage.Store) error) error {
	e, err := loadEnv(globals)
	if err != nil {
		return err
	}
	defer e.close()

	store := injected
	if store == nil {
		store, err = e.openStore()
		if err != nil {
			return err
		}
		defer store.Close()
	}
	return fn(e, store)
}
