package cli

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/dwell/internal/report"
)

func TestReport_TodayByDefault(t *testing.T) {
	store := newMemStore(t)
	seed(t, store, "example.com", 300, 0)
	seed(t, store, "news.org", 120, 0)
	seed(t, store, "old.example", 999, 3)
	e, out, _ := newTestEnv(t)

	cmd := &ReportCommand{globals: &GlobalFlags{}}
	require.NoError(t, cmd.executeWithStore(context.Background(), e, store))

	output := out.String()
	assert.Contains(t, output, "Activity for today (2026-03-14)")
	assert.Contains(t, output, "Total time:  7m 0s")
	assert.Contains(t, output, "example.com")
	assert.NotContains(t, output, "old.example")
}

func TestReport_WeekJSON(t *testing.T) {
	store := newMemStore(t)
	seed(t, store, "example.com", 300, 0)
	seed(t, store, "news.org", 120, 6)
	seed(t, store, "too-old.example", 60, 7)
	e, out, _ := newTestEnv(t)
	e.json = true

	cmd := &ReportCommand{Range: "week", Top: 1, globals: &GlobalFlags{}}
	require.NoError(t, cmd.executeWithStore(context.Background(), e, store))

	var got report.Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, report.RangeWeek, got.Range)
	assert.Equal(t, "2026-03-08", got.From)
	assert.Equal(t, "2026-03-14", got.To)
	assert.Equal(t, int64(420), got.TotalSeconds)
	assert.Equal(t, 2, got.DomainCount)
	require.Len(t, got.TopDomains, 1)
	assert.Equal(t, "example.com", got.TopDomains[0].Domain)
}

func TestReport_EmptyStore(t *testing.T) {
	e, out, _ := newTestEnv(t)
	cmd := &ReportCommand{Range: "month", globals: &GlobalFlags{}}
	require.NoError(t, cmd.executeWithStore(context.Background(), e, newMemStore(t)))
	assert.Contains(t, out.String(), "No activity recorded.")
}

func TestReport_BadRange(t *testing.T) {
	e, _, _ := newTestEnv(t)
	cmd := &ReportCommand{Range: "fortnight", globals: &GlobalFlags{}}
	assert.Error(t, cmd.executeWithStore(context.Background(), e, newMemStore(t)))
}
