// Package schedule implements relique's weekly activation windows. A
// schedule names one optional list of time ranges per weekday; a
// module backs up while one of today's ranges strictly contains the
// current time.
package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// timeRangeExpr extracts HH:MM-HH:MM pairs anywhere in a bounds string.
// Text around the matches is ignored.
var timeRangeExpr = regexp.MustCompile(`([0-9]{2}:[0-9]{2})-([0-9]{2}:[0-9]{2})`)

// Clock is a minute-resolution wall clock time.
type Clock struct {
	Hour   int
	Minute int
}

func parseClock(s string) (Clock, error) {
	hour, err := strconv.Atoi(s[:2])
	if err != nil {
		return Clock{}, fmt.Errorf("invalid time of day %q", s)
	}
	minute, err := strconv.Atoi(s[3:])
	if err != nil {
		return Clock{}, fmt.Errorf("invalid time of day %q", s)
	}
	if hour > 23 || minute > 59 {
		return Clock{}, fmt.Errorf("invalid time of day %q", s)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) daySeconds() int {
	return (c.Hour*60 + c.Minute) * 60
}

// TimeRange is one activation window. Boundaries are exclusive: the
// range 09:00-17:00 is active at 09:00:01 but not at 09:00:00 sharp.
type TimeRange struct {
	Start Clock
	Stop  Clock
}

func (r TimeRange) String() string {
	return r.Start.String() + "-" + r.Stop.String()
}

// contains reports whether the given second of the day falls strictly
// inside the range.
func (r TimeRange) contains(sec int) bool {
	return sec > r.Start.daySeconds() && sec < r.Stop.daySeconds()
}

// Bounds is the ordered list of activation windows for one weekday. It
// serializes as a single string, "09:00-12:00,14:00-18:00", in both
// TOML and JSON documents.
type Bounds []TimeRange

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Bounds) UnmarshalText(text []byte) error {
	matches := timeRangeExpr.FindAllStringSubmatch(string(text), -1)
	ranges := make(Bounds, 0, len(matches))
	for _, m := range matches {
		start, err := parseClock(m[1])
		if err != nil {
			return fmt.Errorf("bounds %q: %w", string(text), err)
		}
		stop, err := parseClock(m[2])
		if err != nil {
			return fmt.Errorf("bounds %q: %w", string(text), err)
		}
		ranges = append(ranges, TimeRange{Start: start, Stop: stop})
	}
	*b = ranges
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (b Bounds) MarshalText() ([]byte, error) {
	parts := make([]string, len(b))
	for i, r := range b {
		parts[i] = r.String()
	}
	return []byte(strings.Join(parts, ",")), nil
}
