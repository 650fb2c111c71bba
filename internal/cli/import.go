package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/runnerr0/dwell/internal/storage"
)

// Execute implements the go-flags Commander interface for ImportCommand.
func (c *ImportCommand) Execute(args []string) error {
	return withStore(c.globals, c.store, func(e *env, store storage.Store) error {
		return c.executeWithStore(context.Background(), e, store)
	})
}

func (c *ImportCommand) executeWithStore(ctx context.Context, e *env, store storage.Store) error {
	data, err := c.readInput()
	if err != nil {
		return err
	}
	doc, err := storage.DecodeDocument(data)
	if err != nil {
		return err
	}
	if err := storage.CheckDocument(doc); err != nil {
		return err
	}
	for _, issue := range storage.Inconsistencies(doc) {
		e.log.Warn().Str("issue", issue).Msg("imported document is inconsistent")
	}

	if !c.Force {
		stats, err := store.GetStats(ctx)
		if err != nil {
			return fmt.Errorf("get stats: %w", err)
		}
		if stats.TotalDomains > 0 || stats.TotalDays > 0 {
			return fmt.Errorf("store already holds %d domain(s); use --force to replace it", stats.TotalDomains)
		}
	}

	if err := store.Restore(ctx, doc); err != nil {
		return fmt.Errorf("restore store: %w", err)
	}

	if e.json {
		return e.printJSON(map[string]interface{}{
			"imported": true,
			"domains":  len(doc.ActivityData),
			"days":     len(doc.DailyData),
		})
	}
	e.printf("Imported %d domain(s) and %d day(s).\n", len(doc.ActivityData), len(doc.DailyData))
	return nil
}

func (c *ImportCommand) readInput() ([]byte, error) {
	if c.Args.File == "-" {
		var in io.Reader = os.Stdin
		if c.stdin != nil {
			in = c.stdin
		}
		data, err := io.ReadAll(in)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(c.Args.File)
	if err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}
	return data, nil
}
