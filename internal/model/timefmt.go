package model

import (
	"fmt"
	"strings"
	"time"
)

// timeLayouts are the accepted input formats, most specific first.
var timeLayouts = []string{
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05.999999999Z",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
}

// ParseTime parses a UTC time string in any of the supported formats.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("could not parse time string %q", s)
}

// FormatTime renders t as "YYYY-MM-DD HH:MM:SS.fff" with the given number
// of fractional digits (0-9).
func FormatTime(t time.Time, digits int) string {
	digits = min(max(digits, 0), 9)
	s := t.UTC().Format("2006-01-02 15:04:05.000000000")
	if digits == 0 {
		return s[:19]
	}
	return s[:20+digits]
}

// CanonicalTime renders t with microsecond precision in ISO 8601 form. It
// is the only time format used for digests and golden output.
func CanonicalTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000Z")
}

// LatString renders a latitude as "12.345 N".
func LatString(lat float64) string {
	if lat >= 0 {
		return fmt.Sprintf("%.3f N", lat)
	}
	return fmt.Sprintf("%.3f S", -lat)
}

// LonString renders a longitude as "12.345 E".
func LonString(lon float64) string {
	if lon >= 0 {
		return fmt.Sprintf("%.3f E", lon)
	}
	return fmt.Sprintf("%.3f W", -lon)
}
