package aggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/runnerr0/dwell/internal/clock"
	"github.com/runnerr0/dwell/internal/storage"
)

// Options tunes retention and date bucketing.
type Options struct {
	RetentionDays int
	PruneInterval time.Duration
	Location      *time.Location
}

// DefaultOptions matches the shipped config defaults.
func DefaultOptions() Options {
	return Options{
		RetentionDays: 90,
		PruneInterval: 24 * time.Hour,
		Location:      time.Local,
	}
}

// SweepResult describes one retention pass.
type SweepResult struct {
	Ran     bool
	DryRun  bool
	Cutoff  string
	Removed int64
}

// Aggregator folds closed sessions into the store and owns retention.
type Aggregator struct {
	store storage.Store
	clock clock.Clock
	opts  Options
	log   zerolog.Logger
}

// New creates an Aggregator over store.
func New(store storage.Store, clk clock.Clock, opts Options, log zerolog.Logger) *Aggregator {
	if clk == nil {
		clk = clock.System{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Aggregator{store: store, clock: clk, opts: opts, log: log}
}

// DateKey buckets t into its calendar day.
func (a *Aggregator) DateKey(t time.Time) string {
	return storage.DateKey(t.In(a.opts.Location))
}

// RecordSession adds seconds of activity on domain to the dateKey bucket,
// bumping the visit count and last-visit time.
func (a *Aggregator) RecordSession(ctx context.Context, domain string, seconds int64, dateKey string) error {
	rec := storage.SessionRecord{
		Domain:  domain,
		Seconds: seconds,
		DateKey: dateKey,
		At:      a.clock.Now(),
	}
	if err := a.store.RecordSession(ctx, rec); err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	a.log.Debug().
		Str("domain", domain).
		Int64("seconds", seconds).
		Str("date", dateKey).
		Msg("session recorded")
	return nil
}

// CleanupOldData runs the retention sweep at most once per prune interval.
// Once the gate passes, the marker is updated even if nothing was removed.
func (a *Aggregator) CleanupOldData(ctx context.Context) (SweepResult, error) {
	now := a.clock.Now()

	last, err := a.store.LastCleanup(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("read cleanup marker: %w", err)
	}
	if !last.IsZero() && now.Sub(last) < a.opts.PruneInterval {
		a.log.Debug().Time("last_cleanup", last).Msg("retention sweep skipped")
		return SweepResult{}, nil
	}

	res := SweepResult{Ran: true, Cutoff: a.CutoffKey(now, a.opts.RetentionDays)}
	res.Removed, err = a.store.PruneDaysBefore(ctx, res.Cutoff)
	if err != nil {
		return SweepResult{}, fmt.Errorf("prune days: %w", err)
	}
	if err := a.store.SetLastCleanup(ctx, now); err != nil {
		return res, fmt.Errorf("update cleanup marker: %w", err)
	}

	a.log.Info().
		Str("cutoff", res.Cutoff).
		Int64("removed", res.Removed).
		Msg("retention sweep complete")
	return res, nil
}

// Prune removes day entries older than the given number of days without
// consulting or moving the cleanup marker. With dryRun it only counts.
func (a *Aggregator) Prune(ctx context.Context, days int, dryRun bool) (SweepResult, error) {
	if days <= 0 {
		return SweepResult{}, fmt.Errorf("retention must be at least one day, got %d", days)
	}
	return a.PruneBefore(ctx, a.CutoffKey(a.clock.Now(), days), dryRun)
}

// PruneBefore removes (or with dryRun, counts) day entries whose key sorts
// before cutoffKey.
func (a *Aggregator) PruneBefore(ctx context.Context, cutoffKey string, dryRun bool) (SweepResult, error) {
	if _, err := time.Parse(storage.DateKeyLayout, cutoffKey); err != nil {
		return SweepResult{}, fmt.Errorf("parse cutoff %q: %w", cutoffKey, err)
	}
	res := SweepResult{Ran: true, DryRun: dryRun, Cutoff: cutoffKey}

	var err error
	if dryRun {
		res.Removed, err = a.store.CountDaysBefore(ctx, cutoffKey)
	} else {
		res.Removed, err = a.store.PruneDaysBefore(ctx, cutoffKey)
	}
	if err != nil {
		return SweepResult{}, fmt.Errorf("prune days: %w", err)
	}
	if !dryRun {
		a.log.Info().Str("cutoff", cutoffKey).Int64("removed", res.Removed).Msg("manual prune complete")
	}
	return res, nil
}

// CutoffKey is the date key days before now; keys sorting before it are
// outside the retention window.
func (a *Aggregator) CutoffKey(now time.Time, days int) string {
	return a.DateKey(now.In(a.opts.Location).AddDate(0, 0, -days))
}

// Clear wipes both maps and resets the cleanup marker.
func (a *Aggregator) Clear(ctx context.Context) error {
	if err := a.store.ClearAll(ctx); err != nil {
		return fmt.Errorf("clear data: %w", err)
	}
	a.log.Info().Msg("all activity data cleared")
	return nil
}
