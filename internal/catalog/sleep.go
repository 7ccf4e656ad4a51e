package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseWakeTime resolves a sleep specification to an absolute UTC wake time.
// Relative forms are d+N, h+N, m+N, and s+N (days, hours, minutes, seconds
// from now); anything else is parsed as an absolute timestamp. Relative
// durations resolve at call time and are never re-evaluated.
func ParseWakeTime(spec string, now time.Time) (time.Time, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return time.Time{}, fmt.Errorf("empty sleep specification")
	}

	if len(spec) > 2 && spec[1] == '+' {
		n, err := strconv.ParseFloat(spec[2:], 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("sleep specification %q: %w", spec, err)
		}
		var unit time.Duration
		switch spec[0] {
		case 'd':
			unit = 24 * time.Hour
		case 'h':
			unit = time.Hour
		case 'm':
			unit = time.Minute
		case 's':
			unit = time.Second
		default:
			return time.Time{}, fmt.Errorf("sleep specification %q: unknown unit %q", spec, spec[0])
		}
		return now.UTC().Add(time.Duration(n * float64(unit))), nil
	}

	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, spec); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable sleep specification %q", spec)
}
