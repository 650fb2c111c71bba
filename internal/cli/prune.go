package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/dwell/internal/aggregator"
	"github.com/runnerr0/dwell/internal/storage"
)

type pruneJSON struct {
	DryRun  bool   `json:"dry_run"`
	Cutoff  string `json:"cutoff"`
	Removed int64  `json:"removed"`
}

// Execute implements the go-flags Commander interface for PruneCommand.
func (c *PruneCommand) Execute(args []string) error {
	return withStore(c.globals, c.store, func(e *env, store storage.Store) error {
		return c.executeWithStore(context.Background(), e, store)
	})
}

func (c *PruneCommand) executeWithStore(ctx context.Context, e *env, store storage.Store) error {
	if c.Before != "" && c.OlderThan != "" {
		return fmt.Errorf("--before and --older-than are mutually exclusive")
	}

	agg, err := e.aggregator(store)
	if err != nil {
		return err
	}

	var res aggregator.SweepResult
	if c.Before != "" {
		if _, err := time.Parse(storage.DateKeyLayout, c.Before); err != nil {
			return fmt.Errorf("invalid --before date %q (want YYYY-MM-DD)", c.Before)
		}
		res, err = agg.PruneBefore(ctx, c.Before, c.DryRun)
	} else {
		days := e.cfg.Retention.Days
		if c.OlderThan != "" {
			if days, err = parseDays(c.OlderThan); err != nil {
				return err
			}
		}
		res, err = agg.Prune(ctx, days, c.DryRun)
	}
	if err != nil {
		return err
	}

	if e.json {
		return e.printJSON(pruneJSON{DryRun: res.DryRun, Cutoff: res.Cutoff, Removed: res.Removed})
	}
	if res.DryRun {
		e.printf("Would remove %d day(s) before %s.\n", res.Removed, res.Cutoff)
		return nil
	}
	e.printf("Removed %d day(s) before %s.\n", res.Removed, res.Cutoff)
	return nil
}
