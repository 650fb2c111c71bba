package storage

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInvalidDocument is returned when an imported document is malformed.
var ErrInvalidDocument = errors.New("invalid activity document")

// CheckDocument rejects documents that no backend can store: bad date
// keys, empty domains, or negative counters.
func CheckDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: empty", ErrInvalidDocument)
	}
	if doc.LastCleanup < 0 {
		return fmt.Errorf("%w: negative lastCleanup", ErrInvalidDocument)
	}
	for domain, ds := range doc.ActivityData {
		if domain == "" {
			return fmt.Errorf("%w: empty domain in activityData", ErrInvalidDocument)
		}
		if ds == nil {
			continue
		}
		if ds.TotalTime < 0 || ds.Visits < 0 || ds.LastVisit < 0 {
			return fmt.Errorf("%w: negative counter for %s", ErrInvalidDocument, domain)
		}
		for key, secs := range ds.DailyBreakdown {
			if err := checkKey(key); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalidDocument, domain, err)
			}
			if secs < 0 {
				return fmt.Errorf("%w: negative seconds for %s on %s", ErrInvalidDocument, domain, key)
			}
		}
	}
	for key, day := range doc.DailyData {
		if err := checkKey(key); err != nil {
			return fmt.Errorf("%w: dailyData: %v", ErrInvalidDocument, err)
		}
		if day == nil {
			continue
		}
		if day.TotalTime < 0 {
			return fmt.Errorf("%w: negative total on %s", ErrInvalidDocument, key)
		}
		for domain, secs := range day.Domains {
			if domain == "" || secs < 0 {
				return fmt.Errorf("%w: bad domain entry on %s", ErrInvalidDocument, key)
			}
		}
	}
	return nil
}

func checkKey(key string) error {
	if _, err := time.Parse(DateKeyLayout, key); err != nil {
		return fmt.Errorf("date key %q is not YYYY-MM-DD", key)
	}
	return nil
}

// Inconsistencies lists violations of the sum and cross-map invariants,
// sorted. Documents written concurrently by older tools can drift; the
// list is informational.
func Inconsistencies(doc *Document) []string {
	var out []string
	for domain, ds := range doc.ActivityData {
		if ds == nil {
			continue
		}
		var sum int64
		for _, v := range ds.DailyBreakdown {
			sum += v
		}
		if sum != ds.TotalTime {
			out = append(out, fmt.Sprintf("%s: totalTime %d != breakdown sum %d", domain, ds.TotalTime, sum))
		}
	}
	for key, day := range doc.DailyData {
		if day == nil {
			continue
		}
		var sum int64
		for domain, v := range day.Domains {
			sum += v
			ds, ok := doc.ActivityData[domain]
			if !ok || ds == nil {
				out = append(out, fmt.Sprintf("%s: %s has no activity entry", key, domain))
				continue
			}
			if ds.DailyBreakdown[key] != v {
				out = append(out, fmt.Sprintf("%s: %s day value %d != breakdown %d", key, domain, v, ds.DailyBreakdown[key]))
			}
		}
		if sum != day.TotalTime {
			out = append(out, fmt.Sprintf("%s: totalTime %d != domain sum %d", key, day.TotalTime, sum))
		}
	}
	sort.Strings(out)
	return out
}
