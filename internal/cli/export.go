package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/runnerr0/dwell/internal/storage"
)

// Execute implements the go-flags Commander interface for ExportCommand.
func (c *ExportCommand) Execute(args []string) error {
	return withStore(c.globals, c.store, func(e *env, store storage.Store) error {
		return c.executeWithStore(context.Background(), e, store)
	})
}

func (c *ExportCommand) executeWithStore(ctx context.Context, e *env, store storage.Store) error {
	doc, err := store.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot store: %w", err)
	}
	data, err := storage.EncodeDocument(doc)
	if err != nil {
		return err
	}

	if c.Output == "" || c.Output == "-" {
		_, err := fmt.Fprintln(e.out, string(data))
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.Output), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(c.Output, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	e.log.Info().Str("path", c.Output).Int("domains", len(doc.ActivityData)).Msg("exported")
	if e.json {
		return e.printJSON(map[string]interface{}{
			"path":    c.Output,
			"domains": len(doc.ActivityData),
			"days":    len(doc.DailyData),
		})
	}
	e.printf("Exported %d domain(s) and %d day(s) to %s\n", len(doc.ActivityData), len(doc.DailyData), c.Output)
	return nil
}
