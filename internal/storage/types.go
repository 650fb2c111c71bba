package storage

import "time"

// DateKeyLayout is the layout of per-day keys. Keys sort chronologically
// as plain strings.
const DateKeyLayout = "2006-01-02"

// DateKey formats t as a YYYY-MM-DD key in t's location.
func DateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

// DomainStat holds lifetime totals for a single hostname.
type DomainStat struct {
	TotalTime      int64            `json:"totalTime"`
	Visits         int64            `json:"visits"`
	LastVisit      int64            `json:"lastVisit"` // epoch-ms
	DailyBreakdown map[string]int64 `json:"dailyBreakdown"`
}

// DayStat holds totals for a single calendar date.
type DayStat struct {
	TotalTime int64            `json:"totalTime"`
	Domains   map[string]int64 `json:"domains"`
}

// Document is the whole persisted state in its external schema shape.
type Document struct {
	ActivityData map[string]*DomainStat `json:"activityData"`
	DailyData    map[string]*DayStat    `json:"dailyData"`
	LastCleanup  int64                  `json:"lastCleanup,omitempty"`
}

// NewDocument returns an empty document with initialized maps.
func NewDocument() *Document {
	return &Document{
		ActivityData: make(map[string]*DomainStat),
		DailyData:    make(map[string]*DayStat),
	}
}

// SessionRecord is one closed tracking interval folded into the store.
type SessionRecord struct {
	Domain  string
	Seconds int64
	DateKey string
	At      time.Time
}

// Stats holds aggregate statistics about the store.
type Stats struct {
	TotalDomains      int64
	TotalDays         int64
	TotalSeconds      int64
	OldestDay         string
	NewestDay         string
	LastCleanup       time.Time
	DatabaseSizeBytes int64
	TopDomains        []DomainTime
}

// DomainTime pairs a domain with its accumulated seconds.
type DomainTime struct {
	Domain  string
	Seconds int64
}
