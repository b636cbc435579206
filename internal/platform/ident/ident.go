// Package ident generates record identifiers and the canonical timestamp
// strings stored in user documents and admission logs.
package ident

import (
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the on-disk format for every timestamp: local time,
// zero padded, one second resolution. Lexicographic order on strings in this
// layout equals chronological order.
const TimestampLayout = "2006-01-02 15:04:05"

// NewID returns a fresh random identifier.
func NewID() string {
	return uuid.New().String()
}

// FormatTimestamp renders t in TimestampLayout using local time.
func FormatTimestamp(t time.Time) string {
	return t.Local().Format(TimestampLayout)
}

// ParseTimestamp parses s as a local-time TimestampLayout string.
func ParseTimestamp(s string) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, s, time.Local)
}

// Now returns the current time truncated to the layout's resolution.
func Now() time.Time {
	return time.Now().Local().Truncate(time.Second)
}

// NowString is FormatTimestamp(Now()).
func NowString() string {
	return FormatTimestamp(Now())
}
