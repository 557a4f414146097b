// Package timegrid holds the pure time arithmetic behind the availability
// engine: interval overlap, clock parsing, and tenant-local day math.
package timegrid

import (
	"fmt"
	"time"
)

// Overlaps reports whether [aStart, aEnd) intersects [bStart, bEnd).
// Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// ParseClock parses "HH:MM" into hour and minute.
func ParseClock(clock string) (hour, minute int, err error) {
	if _, err := fmt.Sscanf(clock, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("invalid clock %q: %w", clock, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid clock %q", clock)
	}
	return hour, minute, nil
}

// Location resolves an IANA timezone name. An unknown name falls back to a
// fixed offset so a misconfigured tenant degrades instead of failing.
func Location(tz string, fallbackOffsetHours int) *time.Location {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.FixedZone(fmt.Sprintf("UTC%+03d:00", fallbackOffsetHours), fallbackOffsetHours*3600)
	}
	return loc
}

// DayStart returns midnight of t's calendar day in loc.
func DayStart(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// At pins a clock time onto day's calendar date in day's location.
func At(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

// NextDay advances to midnight of the next calendar day in day's location.
func NextDay(day time.Time) time.Time {
	return At(day.AddDate(0, 0, 1), 0, 0)
}

// FormatOffset renders t as ISO-8601 with a fixed UTC offset regardless of
// t's own zone. Retained only for tenants whose timezone fails to load.
func FormatOffset(t time.Time, offsetHours int) string {
	zone := time.FixedZone("", offsetHours*3600)
	return t.In(zone).Format("2006-01-02T15:04:05-07:00")
}
