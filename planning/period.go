package planning

import (
	"fmt"
	"time"
)

// =============================================================================
// GRANULARITY - Fixed-width demand buckets
// =============================================================================

// Granularity defines the width of a demand period.
//
// Examples:
//   - Month: 2025-03-01 .. 2025-03-31, key "2025-03"
//   - Week:  ISO week starting Monday, key "2025-W10"
type Granularity string

const (
	GranularityMonth Granularity = "month"
	GranularityWeek  Granularity = "week"
)

// ParseGranularity accepts "month", "week" or "" (month).
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case "", GranularityMonth:
		return GranularityMonth, nil
	case GranularityWeek:
		return GranularityWeek, nil
	}
	return "", &ValidationError{Field: "granularity", Message: fmt.Sprintf("unsupported value %q", s)}
}

// BucketStart returns the first instant (UTC) of the bucket containing t.
func (g Granularity) BucketStart(t time.Time) time.Time {
	t = t.UTC()
	switch g {
	case GranularityWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
		return day.AddDate(0, 0, -offset)
	default:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
}

// Next returns the start of the bucket after the one starting at start.
func (g Granularity) Next(start time.Time) time.Time {
	return g.Add(start, 1)
}

// Add moves n buckets from start (n may be negative).
func (g Granularity) Add(start time.Time, n int) time.Time {
	switch g {
	case GranularityWeek:
		return start.AddDate(0, 0, 7*n)
	default:
		return start.AddDate(0, n, 0)
	}
}

// Key formats the bucket starting at start.
func (g Granularity) Key(start time.Time) string {
	switch g {
	case GranularityWeek:
		year, week := start.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	default:
		return start.Format("2006-01")
	}
}

// PeriodsForDays converts a horizon in days to a number of whole buckets,
// rounding up (90 days -> 3 months, 10 days -> 2 weeks).
func (g Granularity) PeriodsForDays(days int) int {
	if days <= 0 {
		return 0
	}
	width := 30
	if g == GranularityWeek {
		width = 7
	}
	return (days + width - 1) / width
}

// ParseKey is the inverse of Key.
func (g Granularity) ParseKey(key string) (time.Time, error) {
	switch g {
	case GranularityWeek:
		var year, week int
		if _, err := fmt.Sscanf(key, "%04d-W%02d", &year, &week); err != nil {
			return time.Time{}, &ValidationError{Field: "period", Message: fmt.Sprintf("bad week key %q", key)}
		}
		// ISO week 1 contains January 4th.
		jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
		return g.BucketStart(jan4).AddDate(0, 0, 7*(week-1)), nil
	default:
		t, err := time.Parse("2006-01", key)
		if err != nil {
			return time.Time{}, &ValidationError{Field: "period", Message: fmt.Sprintf("bad month key %q", key)}
		}
		return t.UTC(), nil
	}
}
