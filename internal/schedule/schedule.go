package schedule

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Schedule is a named weekly activation pattern. A weekday without
// bounds has no activation window that day.
type Schedule struct {
	Name      string `json:"name" toml:"name"`
	Monday    Bounds `json:"monday,omitempty" toml:"monday,omitempty"`
	Tuesday   Bounds `json:"tuesday,omitempty" toml:"tuesday,omitempty"`
	Wednesday Bounds `json:"wednesday,omitempty" toml:"wednesday,omitempty"`
	Thursday  Bounds `json:"thursday,omitempty" toml:"thursday,omitempty"`
	Friday    Bounds `json:"friday,omitempty" toml:"friday,omitempty"`
	Saturday  Bounds `json:"saturday,omitempty" toml:"saturday,omitempty"`
	Sunday    Bounds `json:"sunday,omitempty" toml:"sunday,omitempty"`
}

func (s Schedule) boundsFor(day time.Weekday) Bounds {
	switch day {
	case time.Monday:
		return s.Monday
	case time.Tuesday:
		return s.Tuesday
	case time.Wednesday:
		return s.Wednesday
	case time.Thursday:
		return s.Thursday
	case time.Friday:
		return s.Friday
	case time.Saturday:
		return s.Saturday
	case time.Sunday:
		return s.Sunday
	}
	return nil
}

func daySeconds(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

// ActiveAt reports whether t falls inside one of the schedule's windows
// for its weekday. Window edges are logged once per crossing: a range
// containing t but not t-lookback logs an entry line, a range
// containing t-lookback but not t logs an exit line. Callers pass the
// daemon tick period as lookback so each edge fires on a single tick.
func (s Schedule) ActiveAt(t time.Time, lookback time.Duration, logger *zap.Logger) bool {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := daySeconds(t)
	previous := daySeconds(t.Add(-lookback))

	active := false
	for _, r := range s.boundsFor(t.Weekday()) {
		inNow := r.contains(now)
		inPrevious := r.contains(previous)
		if inNow && !inPrevious {
			logger.Info(fmt.Sprintf("Entering schedule '%s': '%s'", s.Name, r))
		}
		if !inNow && inPrevious {
			logger.Info(fmt.Sprintf("Exiting schedule '%s': '%s'", s.Name, r))
		}
		active = active || inNow
	}
	return active
}

// ActiveNames evaluates every schedule at t and returns the names of
// the active ones.
func ActiveNames(schedules []Schedule, t time.Time, lookback time.Duration, logger *zap.Logger) []string {
	var names []string
	for _, s := range schedules {
		if s.ActiveAt(t, lookback, logger) {
			names = append(names, s.Name)
		}
	}
	return names
}
