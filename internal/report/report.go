package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/runnerr0/dwell/internal/storage"
)

// Range selects which day buckets a report covers.
type Range string

const (
	RangeToday Range = "today"
	RangeWeek  Range = "week"
	RangeMonth Range = "month"
)

// Days is the number of calendar days covered, today included.
func (r Range) Days() int {
	switch r {
	case RangeWeek:
		return 7
	case RangeMonth:
		return 30
	default:
		return 1
	}
}

// ParseRange accepts the range names plus a few long-form aliases.
func ParseRange(s string) (Range, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "today", "day":
		return RangeToday, nil
	case "week", "7d", "last7":
		return RangeWeek, nil
	case "month", "30d", "last30":
		return RangeMonth, nil
	}
	return "", fmt.Errorf("unknown range %q (want today, week or month)", s)
}

// DefaultTopN is how many domains a summary lists.
const DefaultTopN = 10

// DomainTotal is one row of the top-domains list.
type DomainTotal struct {
	Domain  string `json:"domain"`
	Seconds int64  `json:"seconds"`
	Visits  int64  `json:"visits"`
}

// Summary is the aggregate for one range.
type Summary struct {
	Range        Range         `json:"range"`
	From         string        `json:"from"`
	To           string        `json:"to"`
	TotalSeconds int64         `json:"total_seconds"`
	TotalVisits  int64         `json:"total_visits"`
	DomainCount  int           `json:"domain_count"`
	TopDomains   []DomainTotal `json:"top_domains"`
}

// Source is the read side of the store.
type Source interface {
	ActivityData(ctx context.Context) (map[string]*storage.DomainStat, error)
	DailyData(ctx context.Context) (map[string]*storage.DayStat, error)
}

// Reporter builds summaries from a store.
type Reporter struct {
	src  Source
	loc  *time.Location
	topN int
}

// New creates a Reporter. A nil location means local time; topN <= 0 means
// DefaultTopN.
func New(src Source, loc *time.Location, topN int) *Reporter {
	if loc == nil {
		loc = time.Local
	}
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &Reporter{src: src, loc: loc, topN: topN}
}

// Summary loads both maps and summarizes rng as of now.
func (r *Reporter) Summary(ctx context.Context, rng Range, now time.Time) (*Summary, error) {
	activity, err := r.src.ActivityData(ctx)
	if err != nil {
		return nil, fmt.Errorf("error loading data: %w", err)
	}
	daily, err := r.src.DailyData(ctx)
	if err != nil {
		return nil, fmt.Errorf("error loading data: %w", err)
	}
	return Summarize(activity, daily, rng, now.In(r.loc), r.topN), nil
}

// DateKeys lists the keys covered by rng ending at now, oldest first.
func DateKeys(rng Range, now time.Time) []string {
	n := rng.Days()
	keys := make([]string, 0, n)
	for i := n - 1; i >= 0; i-- {
		keys = append(keys, storage.DateKey(now.AddDate(0, 0, -i)))
	}
	return keys
}

// Summarize is the pure core of Reporter.Summary. now must already be in the
// reporting location.
//
// Visits are an estimate: each day contributes
// ceil(lifetimeVisits * daySeconds / lifetimeSeconds) for every domain seen
// that day.
func Summarize(activity map[string]*storage.DomainStat, daily map[string]*storage.DayStat, rng Range, now time.Time, topN int) *Summary {
	keys := DateKeys(rng, now)
	s := &Summary{Range: rng, From: keys[0], To: keys[len(keys)-1]}

	totals := make(map[string]*DomainTotal)
	for _, key := range keys {
		day, ok := daily[key]
		if !ok || day == nil {
			continue
		}
		s.TotalSeconds += day.TotalTime
		for domain, secs := range day.Domains {
			dt, ok := totals[domain]
			if !ok {
				dt = &DomainTotal{Domain: domain}
				totals[domain] = dt
			}
			dt.Seconds += secs
			dt.Visits += estimateVisits(activity[domain], secs)
		}
	}

	rows := make([]DomainTotal, 0, len(totals))
	for _, dt := range totals {
		s.TotalVisits += dt.Visits
		rows = append(rows, *dt)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Seconds != rows[j].Seconds {
			return rows[i].Seconds > rows[j].Seconds
		}
		return rows[i].Domain < rows[j].Domain
	})

	s.DomainCount = len(rows)
	if topN > 0 && len(rows) > topN {
		rows = rows[:topN]
	}
	s.TopDomains = rows
	return s
}

func estimateVisits(ds *storage.DomainStat, daySeconds int64) int64 {
	if ds == nil || ds.TotalTime <= 0 || ds.Visits <= 0 || daySeconds <= 0 {
		return 0
	}
	num := ds.Visits * daySeconds
	return (num + ds.TotalTime - 1) / ds.TotalTime
}
