// Package models provides data model definitions for the SahelPOS terminal.
package models

import "time"

// TimeSentinel is the far-past timestamp used as the default sync
// checkpoint, meaning "synchronize everything".
const TimeSentinel = "2000-01-01T00:00:00Z"

// FormatTime renders a timestamp in the wire format (RFC 3339, UTC).
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseTime parses a wire-format timestamp. The zero time is returned
// for values that do not parse.
func ParseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// Newer reports whether timestamp a is strictly greater than b.
// Unparseable values compare as the zero time, so a malformed local
// watermark never shields a row from an incoming update.
func Newer(a, b string) bool {
	return ParseTime(a).After(ParseTime(b))
}

// Now returns the current instant in the wire format.
func Now() string {
	return FormatTime(time.Now())
}
