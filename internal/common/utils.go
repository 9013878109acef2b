package common

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// NormalizeCity trims the name and collapses inner runs of whitespace.
func NormalizeCity(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ParseTime tries to parse either RFC3339, a plain date, or Unix seconds.
// The result is always UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	if ts, err := time.ParseInLocation(time.DateOnly, s, time.UTC); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339, YYYY-MM-DD or unix seconds")
}
