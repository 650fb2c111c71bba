package cli

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/dwell/internal/storage"
)

// setupPruneTest seeds three old days and two recent ones.
func setupPruneTest(t *testing.T) *storage.DocumentStore {
	t.Helper()
	store := newMemStore(t)
	for _, daysAgo := range []int{120, 100, 95} {
		seed(t, store, "old.example", 60, daysAgo)
	}
	for _, daysAgo := range []int{10, 0} {
		seed(t, store, "new.example", 60, daysAgo)
	}
	return store
}

func dayCount(t *testing.T, store storage.Store) int {
	t.Helper()
	daily, err := store.DailyData(context.Background())
	require.NoError(t, err)
	return len(daily)
}

func TestPrune_DryRun(t *testing.T) {
	store := setupPruneTest(t)
	e, out, _ := newTestEnv(t)

	cmd := &PruneCommand{DryRun: true, globals: &GlobalFlags{}}
	require.NoError(t, cmd.executeWithStore(context.Background(), e, store))

	assert.Contains(t, out.String(), "Would remove 3 day(s) before 2025-12-14.")
	assert.Equal(t, 5, dayCount(t, store))
}

func TestPrune_UsesRetention(t *testing.T) {
	store := setupPruneTest(t)
	e, out, _ := newTestEnv(t)

	cmd := &PruneCommand{globals: &GlobalFlags{}}
	require.NoError(t, cmd.executeWithStore(context.Background(), e, store))

	assert.Contains(t, out.String(), "Removed 3 day(s) before 2025-12-14.")
	assert.Equal(t, 2, dayCount(t, store))

	// Lifetime totals are kept.
	activity, err := store.ActivityData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(180), activity["old.example"].TotalTime)

	// The marker belongs to the automatic sweep.
	last, err := store.LastCleanup(context.Background())
	require.NoError(t, err)
	assert.True(t, last.IsZero())
}

func TestPrune_OlderThan(t *testing.T) {
	store := setupPruneTest(t)
	e, out, _ := newTestEnv(t)

	cmd := &PruneCommand{OlderThan: "2w", globals: &GlobalFlags{}}
	require.NoError(t, cmd.executeWithStore(context.Background(), e, store))

	assert.Contains(t, out.String(), "Removed 3 day(s) before 2026-02-28.")
	assert.Equal(t, 2, dayCount(t, store))
}

func TestPrune_Before(t *testing.T) {
	store := setupPruneTest(t)
	e, out, _ := newTestEnv(t)
	e.json = true

	cmd := &PruneCommand{Before: "2026-03-14", globals: &GlobalFlags{}}
	require.NoError(t, cmd.executeWithStore(context.Background(), e, store))

	var got pruneJSON
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, pruneJSON{DryRun: false, Cutoff: "2026-03-14", Removed: 4}, got)
	assert.Equal(t, 1, dayCount(t, store))
}

func TestPrune_InvalidArgs(t *testing.T) {
	cases := map[string]*PruneCommand{
		"both":          {Before: "2026-01-01", OlderThan: "30d"},
		"bad before":    {Before: "01/01/2026"},
		"bad duration":  {OlderThan: "forever"},
		"zero duration": {OlderThan: "0d"},
	}
	for name, cmd := range cases {
		t.Run(name, func(t *testing.T) {
			e, _, _ := newTestEnv(t)
			cmd.globals = &GlobalFlags{}
			assert.Error(t, cmd.executeWithStore(context.Background(), e, newMemStore(t)))
		})
	}
}
