package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

// DocumentStore implements Store as a single JSON document in the legacy
// activityData/dailyData/lastCleanup shape. Each mutation loads the whole
// document, mutates it and writes it back while holding the store mutex.
// An empty path keeps the document in memory only.
type DocumentStore struct {
	path string

	mu  sync.Mutex
	mem *Document
}

// NewDocumentStore opens (or lazily creates) the document at path.
func NewDocumentStore(path string) (*DocumentStore, error) {
	s := &DocumentStore{path: path}
	if path == "" {
		s.mem = NewDocument()
		return s, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create document directory: %w", err)
	}
	// Fail early on a corrupt file rather than on the first flush.
	if _, err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// DecodeDocument parses a legacy document, filling in missing maps.
func DecodeDocument(data []byte) (*Document, error) {
	doc := NewDocument()
	if len(data) == 0 {
		return doc, nil
	}
	if err := sonic.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	normalize(doc)
	return doc, nil
}

// EncodeDocument renders doc as indented JSON.
func EncodeDocument(doc *Document) ([]byte, error) {
	data, err := sonic.ConfigStd.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

func normalize(doc *Document) {
	if doc.ActivityData == nil {
		doc.ActivityData = make(map[string]*DomainStat)
	}
	if doc.DailyData == nil {
		doc.DailyData = make(map[string]*DayStat)
	}
	for domain, ds := range doc.ActivityData {
		if ds == nil {
			delete(doc.ActivityData, domain)
			continue
		}
		if ds.DailyBreakdown == nil {
			ds.DailyBreakdown = make(map[string]int64)
		}
	}
	for key, day := range doc.DailyData {
		if day == nil {
			delete(doc.DailyData, key)
			continue
		}
		if day.Domains == nil {
			day.Domains = make(map[string]int64)
		}
	}
}

func (s *DocumentStore) load() (*Document, error) {
	if s.path == "" {
		return s.mem, nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDocument(), nil
		}
		return nil, fmt.Errorf("read document: %w", err)
	}
	return DecodeDocument(data)
}

// save writes the document to a temp file and renames it into place.
func (s *DocumentStore) save(doc *Document) error {
	if s.path == "" {
		s.mem = doc
		return nil
	}
	data, err := EncodeDocument(doc)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}

// mutate runs fn against the current document and persists it when fn
// reports a change.
func (s *DocumentStore) mutate(fn func(doc *Document) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	changed, err := fn(doc)
	if err != nil || !changed {
		return err
	}
	return s.save(doc)
}

// view runs fn against a private copy of the current document.
func (s *DocumentStore) view(fn func(doc *Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	return fn(cloneDocument(doc))
}

// RecordSession upserts the domain and day entries for rec.
func (s *DocumentStore) RecordSession(_ context.Context, rec SessionRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	return s.mutate(func(doc *Document) (bool, error) {
		ApplySession(doc, rec)
		return true, nil
	})
}

// ApplySession folds rec into doc in memory.
func ApplySession(doc *Document, rec SessionRecord) {
	ds, ok := doc.ActivityData[rec.Domain]
	if !ok {
		ds = &DomainStat{DailyBreakdown: make(map[string]int64)}
		doc.ActivityData[rec.Domain] = ds
	}
	ds.TotalTime += rec.Seconds
	ds.Visits++
	ds.LastVisit = rec.At.UnixMilli()
	ds.DailyBreakdown[rec.DateKey] += rec.Seconds

	day, ok := doc.DailyData[rec.DateKey]
	if !ok {
		day = &DayStat{Domains: make(map[string]int64)}
		doc.DailyData[rec.DateKey] = day
	}
	day.TotalTime += rec.Seconds
	day.Domains[rec.Domain] += rec.Seconds
}

// ActivityData returns a copy of every DomainStat.
func (s *DocumentStore) ActivityData(_ context.Context) (map[string]*DomainStat, error) {
	var out map[string]*DomainStat
	err := s.view(func(doc *Document) error {
		out = doc.ActivityData
		return nil
	})
	return out, err
}

// DailyData returns a copy of every DayStat.
func (s *DocumentStore) DailyData(_ context.Context) (map[string]*DayStat, error) {
	var out map[string]*DayStat
	err := s.view(func(doc *Document) error {
		out = doc.DailyData
		return nil
	})
	return out, err
}

// LastCleanup returns when the retention sweep last ran, or the zero time.
func (s *DocumentStore) LastCleanup(_ context.Context) (time.Time, error) {
	var out time.Time
	err := s.view(func(doc *Document) error {
		if doc.LastCleanup > 0 {
			out = time.UnixMilli(doc.LastCleanup)
		}
		return nil
	})
	return out, err
}

// SetLastCleanup records when the retention sweep ran.
func (s *DocumentStore) SetLastCleanup(_ context.Context, t time.Time) error {
	return s.mutate(func(doc *Document) (bool, error) {
		doc.LastCleanup = t.UnixMilli()
		return true, nil
	})
}

// CountDaysBefore counts the day entries whose key sorts before cutoffKey.
func (s *DocumentStore) CountDaysBefore(_ context.Context, cutoffKey string) (int64, error) {
	var n int64
	err := s.view(func(doc *Document) error {
		for key := range doc.DailyData {
			if key < cutoffKey {
				n++
			}
		}
		return nil
	})
	return n, err
}

// PruneDaysBefore deletes day entries whose key sorts before cutoffKey.
// The document is only rewritten when something was removed.
func (s *DocumentStore) PruneDaysBefore(_ context.Context, cutoffKey string) (int64, error) {
	var n int64
	err := s.mutate(func(doc *Document) (bool, error) {
		for key := range doc.DailyData {
			if key < cutoffKey {
				delete(doc.DailyData, key)
				n++
			}
		}
		return n > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// ClearAll resets both maps and the cleanup marker.
func (s *DocumentStore) ClearAll(_ context.Context) error {
	return s.mutate(func(doc *Document) (bool, error) {
		*doc = *NewDocument()
		return true, nil
	})
}

// Snapshot returns a copy of the whole document.
func (s *DocumentStore) Snapshot(_ context.Context) (*Document, error) {
	var out *Document
	err := s.view(func(doc *Document) error {
		out = doc
		return nil
	})
	return out, err
}

// Restore replaces the whole document.
func (s *DocumentStore) Restore(_ context.Context, doc *Document) error {
	cp := cloneDocument(doc)
	normalize(cp)
	return s.mutate(func(cur *Document) (bool, error) {
		*cur = *cp
		return true, nil
	})
}

// GetStats computes aggregate statistics from the document.
func (s *DocumentStore) GetStats(_ context.Context) (*Stats, error) {
	var stats *Stats
	err := s.view(func(doc *Document) error {
		stats = StatsFromDocument(doc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.path != "" {
		if info, err := os.Stat(s.path); err == nil {
			stats.DatabaseSizeBytes = info.Size()
		}
	}
	return stats, nil
}

// StatsFromDocument summarizes doc the same way SQLiteStore.GetStats does.
func StatsFromDocument(doc *Document) *Stats {
	stats := &Stats{
		TotalDomains: int64(len(doc.ActivityData)),
		TotalDays:    int64(len(doc.DailyData)),
	}
	if doc.LastCleanup > 0 {
		stats.LastCleanup = time.UnixMilli(doc.LastCleanup)
	}

	for domain, ds := range doc.ActivityData {
		stats.TotalSeconds += ds.TotalTime
		stats.TopDomains = append(stats.TopDomains, DomainTime{Domain: domain, Seconds: ds.TotalTime})
	}
	sort.Slice(stats.TopDomains, func(i, j int) bool {
		a, b := stats.TopDomains[i], stats.TopDomains[j]
		if a.Seconds != b.Seconds {
			return a.Seconds > b.Seconds
		}
		return a.Domain < b.Domain
	})
	if len(stats.TopDomains) > 10 {
		stats.TopDomains = stats.TopDomains[:10]
	}

	for key := range doc.DailyData {
		if stats.OldestDay == "" || key < stats.OldestDay {
			stats.OldestDay = key
		}
		if key > stats.NewestDay {
			stats.NewestDay = key
		}
	}

	return stats
}

// Close is a no-op; every mutation is already on disk.
func (s *DocumentStore) Close() error {
	return nil
}

func cloneDocument(doc *Document) *Document {
	out := NewDocument()
	out.LastCleanup = doc.LastCleanup
	for domain, ds := range doc.ActivityData {
		if ds == nil {
			continue
		}
		cp := &DomainStat{
			TotalTime:      ds.TotalTime,
			Visits:         ds.Visits,
			LastVisit:      ds.LastVisit,
			DailyBreakdown: make(map[string]int64, len(ds.DailyBreakdown)),
		}
		for k, v := range ds.DailyBreakdown {
			cp.DailyBreakdown[k] = v
		}
		out.ActivityData[domain] = cp
	}
	for key, day := range doc.DailyData {
		if day == nil {
			continue
		}
		cp := &DayStat{
			TotalTime: day.TotalTime,
			Domains:   make(map[string]int64, len(day.Domains)),
		}
		for k, v := range day.Domains {
			cp.Domains[k] = v
		}
		out.DailyData[key] = cp
	}
	return out
}
