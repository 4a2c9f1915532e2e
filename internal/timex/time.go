// Package timex holds the timestamp encoding used by the store and the sync
// file, plus a JSON-friendly Duration for configuration files.
//
// All persisted timestamps are RFC3339 in UTC with a fixed nine-digit
// fraction, so string comparison orders them chronologically. The merge
// logic in the sync engine relies on that.
package timex

import "time"

// Layout is the fixed-width persisted timestamp layout.
const Layout = "2006-01-02T15:04:05.000000000Z07:00"

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time { return time.Now() }

// Format renders t in Layout, normalized to UTC.
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// Parse accepts any RFC3339 timestamp, including ones written by older
// clients with variable-width fractions or numeric offsets.
func Parse(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// Normalize rewrites any RFC3339 timestamp into Layout. Unparseable input
// is returned unchanged.
func Normalize(s string) string {
	t, err := Parse(s)
	if err != nil {
		return s
	}
	return Format(t)
}

// Time returns the clock's current time. A nil clock means the wall clock.
func (c Clock) Time() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// Now formats the clock's current time.
func (c Clock) Now() string {
	return Format(c.Time())
}
