package models

import (
	"fmt"
	"time"

	"github.com/jinzhu/now"

	"github.com/ethpandaops/uptimeoor/pkg/idgen"
)

// BucketSize is the width of a bucket's time interval.
type BucketSize string

// Supported bucket sizes.
const (
	BucketSizeMin5  BucketSize = "min5"
	BucketSizeHour  BucketSize = "hour"
	BucketSizeDay   BucketSize = "day"
	BucketSizeWeek  BucketSize = "week"
	BucketSizeMonth BucketSize = "month"
)

// AllBucketSizes lists every bucket size from finest to coarsest.
var AllBucketSizes = []BucketSize{
	BucketSizeMin5,
	BucketSizeHour,
	BucketSizeDay,
	BucketSizeWeek,
	BucketSizeMonth,
}

// ISOFormat is the millisecond ISO-8601 layout used for bucket ids and wire
// dates.
const ISOFormat = "2006-01-02T15:04:05.000Z"

const min5 = 5 * time.Minute

// ParseBucketSize parses a bucket size name.
func ParseBucketSize(s string) (BucketSize, error) {
	for _, size := range AllBucketSizes {
		if string(size) == s {
			return size, nil
		}
	}

	return "", fmt.Errorf("unknown bucket size %q", s)
}

// utcCalendar performs calendar truncation in UTC with ISO (Monday) weeks.
var utcCalendar = &now.Config{
	WeekStartDay: time.Monday,
	TimeLocation: time.UTC,
}

// GetStart returns the first instant of the bucket of the given size that
// contains t. The result is in UTC with sub-second precision zeroed.
func GetStart(size BucketSize, t time.Time) time.Time {
	// now computes boundaries in the input's own zone.
	cal := utcCalendar.With(t.UTC())

	switch size {
	case BucketSizeMin5:
		minute := cal.BeginningOfMinute()

		return minute.Add(-time.Duration(minute.Minute()%5) * time.Minute)
	case BucketSizeHour:
		return cal.BeginningOfHour()
	case BucketSizeDay:
		return cal.BeginningOfDay()
	case BucketSizeWeek:
		return cal.BeginningOfWeek()
	case BucketSizeMonth:
		return cal.BeginningOfMonth()
	default:
		panic(fmt.Sprintf("unknown bucket size %q", size))
	}
}

// GetEnd returns the last millisecond of the bucket of the given size that
// contains t.
func GetEnd(size BucketSize, t time.Time) time.Time {
	t = t.UTC()
	cal := utcCalendar.With(t)

	var end time.Time

	switch size {
	case BucketSizeMin5:
		next := GetStart(size, t).Add(min5)
		end = utcCalendar.With(next.Add(-5 * time.Second)).EndOfMinute()
	case BucketSizeHour:
		end = cal.EndOfHour()
	case BucketSizeDay:
		end = cal.EndOfDay()
	case BucketSizeWeek:
		end = cal.EndOfWeek()
	case BucketSizeMonth:
		end = cal.EndOfMonth()
	default:
		panic(fmt.Sprintf("unknown bucket size %q", size))
	}

	// Calendar ends are at nanosecond precision; buckets use milliseconds.
	return end.Truncate(time.Millisecond)
}

// GenerateBucketID derives the bucket id for a routine, bucket size and
// completion time. Every instant inside one bucket yields the same id.
func GenerateBucketID(routineID string, size BucketSize, completedAt time.Time) string {
	start := GetStart(size, completedAt)

	return idgen.PrefixBucket + idgen.Hash(routineID, string(size), start.Format(ISOFormat))
}

// UptimeWindow is a display window for uptime summaries.
type UptimeWindow string

// Supported uptime windows.
const (
	WindowDay     UptimeWindow = "day"
	WindowWeek    UptimeWindow = "week"
	WindowMonth   UptimeWindow = "month"
	WindowQuarter UptimeWindow = "quarter"
	WindowYear    UptimeWindow = "year"
)

var windowGranularity = map[UptimeWindow]BucketSize{
	WindowDay:     BucketSizeMin5,
	WindowWeek:    BucketSizeMin5,
	WindowMonth:   BucketSizeHour,
	WindowQuarter: BucketSizeHour,
	WindowYear:    BucketSizeDay,
}

// GranularityForWindow returns the conventional bucket size for a window.
func GranularityForWindow(window UptimeWindow) (BucketSize, error) {
	size, ok := windowGranularity[window]
	if !ok {
		return "", fmt.Errorf("unknown uptime window %q", window)
	}

	return size, nil
}

// WindowRange returns the date filter covering the window that ends at t.
func WindowRange(window UptimeWindow, t time.Time) (DateFilter, error) {
	end := t.UTC()

	var start time.Time

	switch window {
	case WindowDay:
		start = end.AddDate(0, 0, -1)
	case WindowWeek:
		start = end.AddDate(0, 0, -7)
	case WindowMonth:
		start = end.AddDate(0, -1, 0)
	case WindowQuarter:
		start = end.AddDate(0, -3, 0)
	case WindowYear:
		start = end.AddDate(-1, 0, 0)
	default:
		return DateFilter{}, fmt.Errorf("unknown uptime window %q", window)
	}

	return NewDateFilter(&start, &end)
}
