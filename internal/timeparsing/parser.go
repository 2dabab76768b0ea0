// Package timeparsing parses the timestamp shapes found in third-party
// ticketing exports.
//
// Parsing is layered:
//  1. Epoch numbers (seconds, or milliseconds when the value is too large to be seconds)
//  2. Absolute timestamps (RFC3339 and the common SQL-ish layouts)
package timeparsing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// layouts are tried in order; the first that parses wins.
var layouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02",
}

// epochRe matches a bare integer epoch value.
var epochRe = regexp.MustCompile(`^-?\d{1,13}$`)

// millisThreshold separates epoch seconds from epoch milliseconds. Second
// values above it would be past the year 5000.
const millisThreshold = 100_000_000_000

// ParseTimestamp parses s as an absolute timestamp. Values without a zone are
// interpreted as UTC. The result is always in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	if epochRe.MatchString(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid epoch %q: %w", s, err)
		}
		return FromEpoch(n), nil
	}

	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FromEpoch converts an epoch value in seconds or milliseconds to UTC.
func FromEpoch(n int64) time.Time {
	if n > millisThreshold || n < -millisThreshold {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

// ParseOptional parses s, returning nil for empty input or unparseable values.
// Exports frequently carry junk in optional date columns; callers treat those
// as missing.
func ParseOptional(s string) *time.Time {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	t, err := ParseTimestamp(s)
	if err != nil {
		return nil
	}
	return &t
}
