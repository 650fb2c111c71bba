package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/runnerr0/dwell/internal/clock"
)

// ErrTabNotFound is returned by a Browser when the tab (or the active tab
// of a window) no longer exists.
var ErrTabNotFound = errors.New("tab not found")

// Tab is a browser tab as seen by the tracker.
type Tab struct {
	ID       int
	WindowID int
	URL      string
}

// Browser answers tab queries. ActiveTab with NoTab asks for the active tab
// of the last focused window.
type Browser interface {
	TabURL(ctx context.Context, tabID int) (string, error)
	ActiveTab(ctx context.Context, windowID int) (Tab, error)
}

// Recorder receives closed sessions.
type Recorder interface {
	RecordSession(ctx context.Context, domain string, seconds int64, dateKey string) error
	DateKey(t time.Time) string
}

// Resolver maps a URL to the domain that is timed.
type Resolver interface {
	Resolve(rawURL string) (string, bool)
}

// Session is the in-memory tracking state. Domain and StartedAt are set
// together or not at all.
type Session struct {
	ID            string
	TabID         int
	Domain        string
	StartedAt     time.Time
	WindowFocused bool
}

// Tracking reports whether a domain is currently being timed.
func (s Session) Tracking() bool {
	return s.Domain != "" && !s.StartedAt.IsZero()
}

// Flush describes a closed interval handed to the Recorder.
type Flush struct {
	Domain  string
	Seconds int64
	DateKey string
}

// Options tunes a Tracker.
type Options struct {
	TickInterval time.Duration
	MinSession   time.Duration
}

// DefaultOptions flushes once a minute and drops sub-second intervals.
func DefaultOptions() Options {
	return Options{TickInterval: time.Minute, MinSession: time.Second}
}

// Tracker is the per-instance session state machine. Dispatch is the only
// way state changes.
type Tracker struct {
	browser  Browser
	recorder Recorder
	clock    clock.Clock
	opts     Options
	log      zerolog.Logger

	mu       sync.Mutex
	resolver Resolver
	state    Session
	onFlush  func(Flush)
}

// New creates an idle, focused Tracker.
func New(browser Browser, recorder Recorder, resolver Resolver, clk clock.Clock, opts Options, log zerolog.Logger) *Tracker {
	if clk == nil {
		clk = clock.System{}
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Minute
	}
	if opts.MinSession < time.Second {
		opts.MinSession = time.Second
	}
	return &Tracker{
		browser:  browser,
		recorder: recorder,
		resolver: resolver,
		clock:    clk,
		opts:     opts,
		log:      log,
		state:    Session{TabID: NoTab, WindowFocused: true},
	}
}

// State returns a copy of the current session.
func (t *Tracker) State() Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetResolver swaps the URL resolver, e.g. after a config reload. The open
// session is left alone.
func (t *Tracker) SetResolver(r Resolver) {
	t.mu.Lock()
	t.resolver = r
	t.mu.Unlock()
}

// OnFlush registers a hook called after each successful record.
func (t *Tracker) OnFlush(fn func(Flush)) {
	t.mu.Lock()
	t.onFlush = fn
	t.mu.Unlock()
}

// Dispatch applies ev to the state machine and returns the new state.
// Failures are logged and absorbed; the tracker always ends in a valid state.
func (t *Tracker) Dispatch(ctx context.Context, ev Event) Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.log.Debug().Stringer("event", ev).Msg("dispatch")

	switch ev.Kind {
	case KindStart:
		if t.state.Tracking() {
			break
		}
		t.openActive(ctx, NoTab)

	case KindTabActivated:
		t.close(ctx)
		t.openTab(ctx, ev.TabID, "")

	case KindTabUpdated:
		if ev.TabID == NoTab || ev.TabID != t.state.TabID {
			break
		}
		t.close(ctx)
		t.openTab(ctx, ev.TabID, ev.URL)

	case KindTabRemoved:
		if ev.TabID != t.state.TabID {
			break
		}
		t.close(ctx)
		t.state.TabID = NoTab

	case KindFocusLost:
		t.close(ctx)
		t.state.WindowFocused = false

	case KindFocusGained:
		t.close(ctx)
		t.state.WindowFocused = true
		t.openActive(ctx, ev.WindowID)

	case KindTick:
		t.tick(ctx)

	case KindStop:
		t.close(ctx)

	default:
		t.log.Warn().Int("kind", int(ev.Kind)).Msg("unknown event ignored")
	}

	return t.state
}

// tick flushes the running session and immediately reopens it for the
// same domain so long sessions are persisted incrementally. The reopened
// session starts at the end of the last whole second flushed, so
// sub-second remainders are not lost across ticks.
func (t *Tracker) tick(ctx context.Context) {
	if !t.state.Tracking() || !t.state.WindowFocused {
		return
	}
	now := t.clock.Now()
	elapsed := now.Sub(t.state.StartedAt)
	if elapsed < t.opts.MinSession {
		return
	}
	domain, tabID := t.state.Domain, t.state.TabID
	t.close(ctx)
	t.open(tabID, domain)
	t.state.StartedAt = now.Add(-(elapsed % time.Second))
}

// close ends the current session, recording it when it is long enough.
// Closing without a session is a no-op.
func (t *Tracker) close(ctx context.Context) {
	if !t.state.Tracking() {
		return
	}
	s := t.state
	t.state.ID = ""
	t.state.Domain = ""
	t.state.StartedAt = time.Time{}

	if !s.WindowFocused {
		return
	}

	now := t.clock.Now()
	elapsed := now.Sub(s.StartedAt)
	if elapsed < t.opts.MinSession {
		t.log.Debug().Str("domain", s.Domain).Dur("elapsed", elapsed).Msg("short session discarded")
		return
	}

	f := Flush{
		Domain:  s.Domain,
		Seconds: int64(elapsed / time.Second),
		DateKey: t.recorder.DateKey(now),
	}
	if err := t.recorder.RecordSession(ctx, f.Domain, f.Seconds, f.DateKey); err != nil {
		// The interval is lost; the session is already closed.
		t.log.Error().Err(err).
			Str("session_id", s.ID).
			Str("domain", f.Domain).
			Int64("seconds", f.Seconds).
			Msg("failed to record session")
		return
	}

	t.log.Info().
		Str("session_id", s.ID).
		Str("domain", f.Domain).
		Int64("seconds", f.Seconds).
		Str("date", f.DateKey).
		Msg("session flushed")
	if t.onFlush != nil {
		t.onFlush(f)
	}
}

// openTab resolves tabID (using url when the event carried one) and starts
// timing it if the window is focused.
func (t *Tracker) openTab(ctx context.Context, tabID int, url string) {
	t.state.TabID = tabID
	if url == "" {
		var err error
		url, err = t.browser.TabURL(ctx, tabID)
		if err != nil {
			t.logLookupError(err, tabID)
			t.state.TabID = NoTab
			return
		}
	}
	domain, ok := t.resolve(url)
	if !ok || !t.state.WindowFocused {
		return
	}
	t.open(tabID, domain)
}

// openActive starts timing the active tab of windowID.
func (t *Tracker) openActive(ctx context.Context, windowID int) {
	tab, err := t.browser.ActiveTab(ctx, windowID)
	if err != nil {
		t.logLookupError(err, NoTab)
		return
	}
	t.state.TabID = tab.ID
	domain, ok := t.resolve(tab.URL)
	if !ok || !t.state.WindowFocused {
		return
	}
	t.open(tab.ID, domain)
}

func (t *Tracker) open(tabID int, domain string) {
	t.state.ID = uuid.NewString()
	t.state.TabID = tabID
	t.state.Domain = domain
	t.state.StartedAt = t.clock.Now()
	t.log.Debug().Str("session_id", t.state.ID).Str("domain", domain).Int("tab", tabID).Msg("session opened")
}

func (t *Tracker) resolve(url string) (string, bool) {
	if t.resolver == nil {
		return "", false
	}
	return t.resolver.Resolve(url)
}

func (t *Tracker) logLookupError(err error, tabID int) {
	if errors.Is(err, ErrTabNotFound) {
		t.log.Debug().Int("tab", tabID).Msg("tab not found")
		return
	}
	t.log.Warn().Err(err).Int("tab", tabID).Msg("tab lookup failed")
}

// Run serializes events from the channel, injects a Tick every
// TickInterval, and flushes the open session when ctx is cancelled or the
// channel closes. It dispatches Start before reading any event. events may
// be nil when callers use Dispatch directly.
func (t *Tracker) Run(ctx context.Context, events <-chan Event) error {
	ticker := time.NewTicker(t.opts.TickInterval)
	defer ticker.Stop()

	t.Dispatch(ctx, Start())

	for {
		select {
		case <-ctx.Done():
			t.Dispatch(context.WithoutCancel(ctx), Stop())
			return nil
		case ev, ok := <-events:
			if !ok {
				t.Dispatch(ctx, Stop())
				return nil
			}
			t.Dispatch(ctx, ev)
		case <-ticker.C:
			t.Dispatch(ctx, Tick())
		}
	}
}
