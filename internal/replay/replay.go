package replay

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"github.com/runnerr0/dwell/internal/clock"
	"github.com/runnerr0/dwell/internal/daemon"
	"github.com/runnerr0/dwell/internal/tracker"
)

// Extra line types on top of the daemon message types.
const (
	TypeStart = "start"
	TypeTick  = "tick"
	TypeStop  = "stop"
)

const maxLineSize = 1 << 20

// Line is one entry of a replay log.
type Line struct {
	At       time.Time `json:"at"`
	Type     string    `json:"type"`
	TabID    *int      `json:"tabId,omitempty"`
	WindowID *int      `json:"windowId,omitempty"`
	URL      string    `json:"url,omitempty"`
	Active   bool      `json:"active,omitempty"`
}

func (l Line) message() daemon.Message {
	return daemon.Message{Type: l.Type, TabID: l.TabID, WindowID: l.WindowID, URL: l.URL, Active: l.Active}
}

// Result summarizes a replay.
type Result struct {
	Lines   int       `json:"lines"`
	Events  int       `json:"events"`
	Ticks   int       `json:"ticks"`
	Flushes int       `json:"flushes"`
	Seconds int64     `json:"seconds"`
	From    time.Time `json:"from"`
	To      time.Time `json:"to"`
}

// Replayer feeds a recorded event log through a tracker on a virtual
// clock, synthesizing the periodic ticks that would have fired.
type Replayer struct {
	tracker  *tracker.Tracker
	registry *daemon.Registry
	clock    *clock.Fake
	tick     time.Duration
	log      zerolog.Logger
}

// New creates a Replayer. tr must have been built with registry as its
// Browser and clk as its clock.
func New(tr *tracker.Tracker, registry *daemon.Registry, clk *clock.Fake, tick time.Duration, log zerolog.Logger) *Replayer {
	if tick <= 0 {
		tick = time.Minute
	}
	return &Replayer{tracker: tr, registry: registry, clock: clk, tick: tick, log: log}
}

// Run replays every line of r. Timestamps must not go backwards. The open
// session is flushed at the last timestamp.
func (p *Replayer) Run(ctx context.Context, r io.Reader) (Result, error) {
	var res Result
	p.tracker.OnFlush(func(f tracker.Flush) {
		res.Flushes++
		res.Seconds += f.Seconds
	})
	defer p.tracker.OnFlush(nil)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		started  bool
		nextTick time.Time
		lineNo   int
	)
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return res, err
		}
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}

		var line Line
		if err := sonic.Unmarshal(raw, &line); err != nil {
			return res, fmt.Errorf("parse line %d: %w", lineNo, err)
		}
		if line.At.IsZero() {
			return res, fmt.Errorf("parse line %d: missing \"at\" timestamp", lineNo)
		}
		res.Lines++

		if !started {
			started = true
			res.From = line.At
			p.clock.Set(line.At)
			nextTick = line.At.Add(p.tick)
			if line.Type != TypeStart {
				p.tracker.Dispatch(ctx, tracker.Start())
			}
		}
		if line.At.Before(p.clock.Now()) {
			return res, fmt.Errorf("line %d: timestamp %s goes backwards", lineNo, line.At.Format(time.RFC3339))
		}

		for !nextTick.After(line.At) {
			p.clock.Set(nextTick)
			p.tracker.Dispatch(ctx, tracker.Tick())
			res.Ticks++
			nextTick = nextTick.Add(p.tick)
		}
		p.clock.Set(line.At)
		res.To = line.At

		ev, ok, err := p.event(line)
		if err != nil {
			return res, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if ok {
			p.tracker.Dispatch(ctx, ev)
			res.Events++
		}
	}
	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("read replay log: %w", err)
	}

	if started {
		p.tracker.Dispatch(ctx, tracker.Stop())
	}
	p.log.Info().
		Int("lines", res.Lines).
		Int("flushes", res.Flushes).
		Int64("seconds", res.Seconds).
		Msg("replay complete")
	return res, nil
}

func (p *Replayer) event(line Line) (tracker.Event, bool, error) {
	switch line.Type {
	case TypeStart:
		return tracker.Start(), true, nil
	case TypeTick:
		return tracker.Tick(), true, nil
	case TypeStop:
		return tracker.Stop(), true, nil
	}
	return p.registry.Apply(line.message())
}
