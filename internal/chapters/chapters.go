// Package chapters restructures the chapter metadata of downloaded media.
// A chapter list is a sorted set of start offsets with titles; the container
// decides how the list is persisted (matroska chapter atoms versus vorbis
// comment cue tags), which the codec layer hides.
package chapters

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Chapter is one cue point. End is derived from the next chapter's start (or
// the container duration) and is never stored independently.
type Chapter struct {
	Start float64 // seconds from the beginning
	Title string
}

// Normalize sorts chapters by start, forces the first to offset zero, fills
// empty titles, and rejects duplicate offsets. The input is not modified.
func Normalize(list []Chapter) ([]Chapter, error) {
	if len(list) == 0 {
		return nil, fmt.Errorf("chapter list is empty")
	}

	out := make([]Chapter, len(list))
	copy(out, list)
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })

	if out[0].Start != 0 {
		out = append([]Chapter{{Start: 0}}, out...)
	}
	for i := range out {
		if i > 0 && out[i].Start <= out[i-1].Start {
			return nil, fmt.Errorf("duplicate chapter offset %s", FormatTimestamp(out[i].Start))
		}
		if strings.TrimSpace(out[i].Title) == "" {
			out[i].Title = fmt.Sprintf("Chapter %02d", i+1)
		}
	}
	return out, nil
}

// ParseTimestamp accepts "HH:MM:SS", "MM:SS", plain seconds, each with an
// optional fractional part, and returns seconds.
func ParseTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}

	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}

	var total float64
	for _, part := range parts {
		n, err := strconv.ParseFloat(part, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid timestamp %q", value)
		}
		total = total*60 + n
	}
	return total, nil
}

// FormatTimestamp renders seconds as HH:MM:SS.mmm.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	whole := int(seconds)
	millis := int(math.Round((seconds - float64(whole)) * 1000))
	if millis == 1000 {
		whole++
		millis = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d.%03d", whole/3600, (whole/60)%60, whole%60, millis)
}

// ParseSpec parses a chapter list in "TIMESTAMP[=TITLE]" form, one chapter
// per element.
func ParseSpec(specs []string) ([]Chapter, error) {
	var list []Chapter
	for _, spec := range specs {
		stamp, title, _ := strings.Cut(spec, "=")
		start, err := ParseTimestamp(stamp)
		if err != nil {
			return nil, err
		}
		list = append(list, Chapter{Start: start, Title: strings.TrimSpace(title)})
	}
	return Normalize(list)
}
