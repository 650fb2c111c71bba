package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/runnerr0/dwell/internal/storage"
)

// Execute implements the go-flags Commander interface for PurgeCommand.
func (c *PurgeCommand) Execute(args []string) error {
	if !c.All {
		return fmt.Errorf("purge requires --all flag for safety")
	}
	return withStore(c.globals, c.store, func(e *env, store storage.Store) error {
		return c.executeWithStore(context.Background(), e, store)
	})
}

func (c *PurgeCommand) executeWithStore(ctx context.Context, e *env, store storage.Store) error {
	// Confirmation prompt unless --force
	if !c.Force {
		e.printf("⚠ WARNING: This will permanently delete ALL dwell data.\n")
		e.printf("  - Lifetime time and visit totals for every domain\n")
		e.printf("  - All per-day activity\n")
		e.printf("\nThis action cannot be undone.\n\n")
		e.printf(`Type "PURGE" to confirm: `)

		var in io.Reader = os.Stdin
		if c.stdin != nil {
			in = c.stdin
		}
		scanner := bufio.NewScanner(in)
		if !scanner.Scan() {
			return fmt.Errorf("aborted: no input received")
		}
		if strings.TrimSpace(scanner.Text()) != "PURGE" {
			return fmt.Errorf("aborted: confirmation text did not match")
		}
	}

	agg, err := e.aggregator(store)
	if err != nil {
		return err
	}
	if err := agg.Clear(ctx); err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}

	if e.json {
		return e.printJSON(map[string]interface{}{
			"purged":  true,
			"message": "all data deleted",
		})
	}
	e.printf("Purged all data. dwell is empty.\n")
	return nil
}
