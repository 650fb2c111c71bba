package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/runnerr0/dwell/internal/aggregator"
	"github.com/runnerr0/dwell/internal/capture"
	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/daemon"
	"github.com/runnerr0/dwell/internal/logging"
	"github.com/runnerr0/dwell/internal/report"
	"github.com/runnerr0/dwell/internal/storage"
	"github.com/runnerr0/dwell/internal/tracker"
)

// sweepCheckInterval is how often the daemon asks the aggregator whether a
// retention sweep is due. The prune interval still gates the actual sweep.
const sweepCheckInterval = time.Hour

// Execute implements the go-flags Commander interface for TrackCommand.
func (c *TrackCommand) Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := loadEnv(c.globals)
	if err != nil {
		return err
	}
	defer e.close()

	store, err := e.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	return c.run(ctx, e, store, nil)
}

// run serves on ln, or binds the configured address when ln is nil.
func (c *TrackCommand) run(ctx context.Context, e *env, store storage.Store, ln net.Listener) error {
	agg, err := e.aggregator(store)
	if err != nil {
		return err
	}
	if res, err := agg.CleanupOldData(ctx); err != nil {
		e.log.Warn().Err(err).Msg("startup retention sweep failed")
	} else if res.Ran {
		e.log.Info().Str("cutoff", res.Cutoff).Int64("removed", res.Removed).Msg("startup retention sweep")
	}

	filter, err := capture.NewFilter(e.cfg.Capture)
	if err != nil {
		return err
	}
	loc, err := e.cfg.Location()
	if err != nil {
		return err
	}
	rng, err := report.ParseRange(e.cfg.Report.DefaultRange)
	if err != nil {
		return err
	}

	registry := daemon.NewRegistry()
	opts := tracker.Options{
		TickInterval: e.cfg.TickInterval(),
		MinSession:   time.Duration(e.cfg.Tracking.MinSessionSeconds) * time.Second,
	}
	tr := tracker.New(registry, agg, filter, e.clock, opts, logging.Component(e.log, "tracker"))
	srv := daemon.NewServer(registry, tr, report.New(store, loc, e.cfg.Report.TopN), agg, e.clock, daemon.ServerOptions{
		AuthToken:      e.cfg.Daemon.AuthToken,
		MaxRequestSize: int64(e.cfg.Daemon.MaxRequestSize),
		DefaultRange:   rng,
	}, logging.Component(e.log, "daemon"))

	runners := []daemon.Runner{retentionRunner(agg, e)}
	if !c.NoWatch {
		runners = append(runners, func(ctx context.Context) error {
			return config.Watch(ctx, e.configPath, logging.Component(e.log, "config"), func(cfg *config.Config) {
				f, err := capture.NewFilter(cfg.Capture)
				if err != nil {
					e.log.Warn().Err(err).Msg("capture rules not reloaded")
					return
				}
				tr.SetResolver(f)
				e.log.Info().Msg("capture rules reloaded")
			})
		})
	}

	addr := c.addr(e.cfg)
	if ln != nil {
		addr = ln.Addr().String()
	}
	e.log.Info().Str("addr", addr).Str("version", c.version).Msg("dwell daemon starting")
	if !e.json {
		e.printf("dwell %s listening on http://%s (Ctrl-C to stop)\n", c.version, addr)
	}

	dlog := logging.Component(e.log, "daemon")
	if ln == nil {
		err = daemon.ListenAndServe(ctx, addr, srv.Handler(), tr, dlog, runners...)
	} else {
		err = daemon.Serve(ctx, ln, srv.Handler(), tr, dlog, runners...)
	}
	if err != nil {
		return fmt.Errorf("daemon: %w", err)
	}
	return nil
}

// addr applies --host and --port over the configured address.
func (c *TrackCommand) addr(cfg *config.Config) string {
	host, port := cfg.Daemon.Host, cfg.Daemon.Port
	if c.Host != "" {
		host = c.Host
	}
	if c.Port > 0 {
		port = c.Port
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// retentionRunner re-checks the retention gate while the daemon runs for
// longer than a prune interval.
func retentionRunner(agg *aggregator.Aggregator, e *env) daemon.Runner {
	return func(ctx context.Context) error {
		ticker := time.NewTicker(sweepCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				res, err := agg.CleanupOldData(ctx)
				if err != nil {
					e.log.Warn().Err(err).Msg("retention sweep failed")
					continue
				}
				if res.Ran {
					e.log.Info().Str("cutoff", res.Cutoff).Int64("removed", res.Removed).Msg("retention sweep")
				}
			}
		}
	}
}
