package cli

import (
	"context"

	"github.com/runnerr0/dwell/internal/report"
	"github.com/runnerr0/dwell/internal/storage"
)

// Execute implements the go-flags Commander interface for ReportCommand.
func (c *ReportCommand) Execute(args []string) error {
	return withStore(c.globals, c.store, func(e *env, store storage.Store) error {
		return c.executeWithStore(context.Background(), e, store)
	})
}

func (c *ReportCommand) executeWithStore(ctx context.Context, e *env, store storage.Store) error {
	name := c.Range
	if name == "" {
		name = e.cfg.Report.DefaultRange
	}
	rng, err := report.ParseRange(name)
	if err != nil {
		return err
	}
	top := c.Top
	if top <= 0 {
		top = e.cfg.Report.TopN
	}
	loc, err := e.cfg.Location()
	if err != nil {
		return err
	}

	sum, err := report.New(store, loc, top).Summary(ctx, rng, e.clock.Now())
	if err != nil {
		return err
	}

	if e.json {
		return e.printJSON(sum)
	}
	report.RenderText(e.out, sum)
	return nil
}
