package safe

import (
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the SAFE timestamp layout. Timestamps carry no zone and are UTC.
const TimeLayout = "2006-01-02T15:04:05.000000"

// ParseTime parses a SAFE timestamp into a UTC instant with microsecond
// resolution. More than six fractional digits is rejected rather than rounded.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "Z")
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	if i := strings.IndexByte(s, '.'); i >= 0 && len(s)-i-1 > 6 {
		return time.Time{}, fmt.Errorf("timestamp %q has sub-microsecond precision", s)
	}

	// The seconds layout accepts an optional fractional part when parsing.
	t, err := time.ParseInLocation("2006-01-02T15:04:05", s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse time: %w", err)
	}
	return t, nil
}

// FormatTime renders t in the SAFE timestamp layout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Seconds converts a float number of seconds to a Duration rounded to the
// nearest microsecond.
func Seconds(s float64) time.Duration {
	return time.Duration(roundHalfAway(s*1e6)) * time.Microsecond
}

func roundHalfAway(x float64) int64 {
	if x < 0 {
		return -int64(-x + 0.5)
	}
	return int64(x + 0.5)
}
