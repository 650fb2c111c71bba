package replay

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/dwell/internal/aggregator"
	"github.com/runnerr0/dwell/internal/capture"
	"github.com/runnerr0/dwell/internal/clock"
	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/daemon"
	"github.com/runnerr0/dwell/internal/storage"
	"github.com/runnerr0/dwell/internal/tracker"
)

func setupReplayer(t *testing.T) (*Replayer, *storage.DocumentStore) {
	t.Helper()
	store, err := storage.NewDocumentStore("")
	require.NoError(t, err)

	clk := clock.NewFake(time.Time{})
	opts := aggregator.DefaultOptions()
	opts.Location = time.UTC
	agg := aggregator.New(store, clk, opts, zerolog.Nop())

	filter, err := capture.NewFilter(config.DefaultConfig().Capture)
	require.NoError(t, err)

	reg := daemon.NewRegistry()
	tr := tracker.New(reg, agg, filter, clk, tracker.DefaultOptions(), zerolog.Nop())
	return New(tr, reg, clk, time.Minute, zerolog.Nop()), store
}

const sessionLog = `
# morning session
{"at":"2026-10-19T09:00:00Z","type":"window_focus_changed","windowId":1}
{"at":"2026-10-19T09:00:00Z","type":"tab_activated","tabId":3,"windowId":1,"url":"https://example.com"}
{"at":"2026-10-19T09:02:30Z","type":"tab_updated","tabId":3,"url":"https://news.example.org/today"}
{"at":"2026-10-19T09:03:00Z","type":"window_focus_changed","windowId":-1}
{"at":"2026-10-19T09:10:00Z","type":"window_focus_changed","windowId":1}
{"at":"2026-10-19T09:10:45Z","type":"tab_removed","tabId":3}
`

func TestReplay_SessionLog(t *testing.T) {
	p, store := setupReplayer(t)

	res, err := p.Run(context.Background(), strings.NewReader(sessionLog))
	require.NoError(t, err)
	assert.Equal(t, 6, res.Lines)
	assert.Equal(t, 6, res.Events)
	// One tick per minute from 09:01 to 09:10.
	assert.Equal(t, 10, res.Ticks)
	assert.Equal(t, int64(150+30+45), res.Seconds)
	assert.Equal(t, time.Date(2026, 10, 19, 9, 10, 45, 0, time.UTC), res.To)

	activity, err := store.ActivityData(context.Background())
	require.NoError(t, err)
	require.Contains(t, activity, "example.com")
	assert.Equal(t, int64(150), activity["example.com"].TotalTime)
	// 09:00-09:01 tick, 09:01-09:02 tick, then 09:02-09:02:30 until the
	// tab navigates away.
	assert.Equal(t, int64(3), activity["example.com"].Visits)
	// 09:02:30-09:03 before focus loss, then 09:10-09:10:45 after refocus
	// on the same tab, which now shows news.example.org.
	assert.Equal(t, int64(30+45), activity["news.example.org"].TotalTime)
	assert.Equal(t, int64(2), activity["news.example.org"].Visits)
}

func TestReplay_RejectsBackwardsTime(t *testing.T) {
	p, _ := setupReplayer(t)
	log := `{"at":"2026-10-19T09:00:00Z","type":"tick"}
{"at":"2026-10-19T08:59:00Z","type":"tick"}`

	_, err := p.Run(context.Background(), strings.NewReader(log))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
	assert.Contains(t, err.Error(), "backwards")
}

func TestReplay_BadLines(t *testing.T) {
	cases := map[string]string{
		"not json":     `{"at":`,
		"no timestamp": `{"type":"tick"}`,
		"unknown type": `{"at":"2026-10-19T09:00:00Z","type":"tab_zoomed","tabId":1}`,
	}
	for name, log := range cases {
		t.Run(name, func(t *testing.T) {
			p, _ := setupReplayer(t)
			_, err := p.Run(context.Background(), strings.NewReader(log))
			assert.Error(t, err)
		})
	}
}

func TestReplay_Empty(t *testing.T) {
	p, store := setupReplayer(t)
	res, err := p.Run(context.Background(), strings.NewReader("\n# nothing\n"))
	require.NoError(t, err)
	assert.Zero(t, res.Lines)

	doc, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc.ActivityData)
}

func TestReplay_CancelledContext(t *testing.T) {
	p, _ := setupReplayer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Run(ctx, strings.NewReader(sessionLog))
	assert.ErrorIs(t, err, context.Canceled)
}
