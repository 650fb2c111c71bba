package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/runnerr0/dwell/internal/capture"
	"github.com/runnerr0/dwell/internal/clock"
	"github.com/runnerr0/dwell/internal/daemon"
	"github.com/runnerr0/dwell/internal/logging"
	"github.com/runnerr0/dwell/internal/replay"
	"github.com/runnerr0/dwell/internal/report"
	"github.com/runnerr0/dwell/internal/storage"
	"github.com/runnerr0/dwell/internal/tracker"
)

// replayJSON is the JSON output structure for the replay command.
type replayJSON struct {
	DryRun bool            `json:"dry_run"`
	Result replay.Result   `json:"result"`
	Report *report.Summary `json:"report,omitempty"`
}

// Execute implements the go-flags Commander interface for ReplayCommand.
func (c *ReplayCommand) Execute(args []string) error {
	injected := c.store
	if c.DryRun && injected == nil {
		mem, err := storage.NewDocumentStore("")
		if err != nil {
			return err
		}
		injected = mem
	}
	return withStore(c.globals, injected, func(e *env, store storage.Store) error {
		return c.executeWithStore(context.Background(), e, store)
	})
}

func (c *ReplayCommand) executeWithStore(ctx context.Context, e *env, store storage.Store) error {
	in, closeIn, err := c.openInput()
	if err != nil {
		return err
	}
	defer closeIn()

	tick := e.cfg.TickInterval()
	if c.TickSeconds > 0 {
		tick = time.Duration(c.TickSeconds) * time.Second
	}

	fake := clock.NewFake(time.Time{})
	e.clock = fake
	agg, err := e.aggregator(store)
	if err != nil {
		return err
	}
	filter, err := capture.NewFilter(e.cfg.Capture)
	if err != nil {
		return err
	}
	registry := daemon.NewRegistry()
	opts := tracker.Options{
		TickInterval: tick,
		MinSession:   time.Duration(e.cfg.Tracking.MinSessionSeconds) * time.Second,
	}
	tr := tracker.New(registry, agg, filter, fake, opts, logging.Component(e.log, "tracker"))
	p := replay.New(tr, registry, fake, tick, logging.Component(e.log, "replay"))

	res, err := p.Run(ctx, in)
	if err != nil {
		return err
	}

	var sum *report.Summary
	if c.DryRun && res.Lines > 0 {
		loc, err := e.cfg.Location()
		if err != nil {
			return err
		}
		sum, err = report.New(store, loc, e.cfg.Report.TopN).Summary(ctx, report.RangeMonth, res.To)
		if err != nil {
			return err
		}
	}

	if e.json {
		return e.printJSON(replayJSON{DryRun: c.DryRun, Result: res, Report: sum})
	}
	if res.Lines == 0 {
		e.printf("Nothing to replay.\n")
		return nil
	}
	e.printf("Replayed %d line(s): %d event(s), %d tick(s).\n", res.Lines, res.Events, res.Ticks)
	e.printf("Recorded %s across %d flush(es), %s to %s.\n",
		report.FormatDuration(res.Seconds), res.Flushes,
		res.From.Format(time.RFC3339), res.To.Format(time.RFC3339))
	if sum != nil {
		e.printf("\n")
		report.RenderText(e.out, sum)
	}
	return nil
}

func (c *ReplayCommand) openInput() (io.Reader, func(), error) {
	if c.Args.File == "-" {
		if c.stdin != nil {
			return c.stdin, func() {}, nil
		}
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(c.Args.File)
	if err != nil {
		return nil, nil, fmt.Errorf("open replay log: %w", err)
	}
	return f, func() { f.Close() }, nil
}
