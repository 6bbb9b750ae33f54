// Package stores provides persistent repository implementations backed by
// SQL databases (via squealx), Redis, and an optional ristretto read-through
// cache. Every store satisfies the corresponding repository interface of the
// root package; the in-memory stores there remain the zero-setup default.
package stores

import (
	"time"

	"github.com/oarkflow/date"
)

// parseFlexibleTime accepts the loose timestamp formats drivers hand back
// (RFC 3339, dates without zone, unix-style strings).
func parseFlexibleTime(s string) (time.Time, error) {
	return date.Parse(s)
}

// scanNullableTime converts a raw scanned column into a *time.Time. Drivers
// return time.Time, string or []byte depending on the backend; anything
// unparsable yields nil.
func scanNullableTime(raw any) *time.Time {
	switch v := raw.(type) {
	case time.Time:
		return &v
	case string:
		if t, err := parseFlexibleTime(v); err == nil {
			return &t
		}
	case []byte:
		if t, err := parseFlexibleTime(string(v)); err == nil {
			return &t
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
