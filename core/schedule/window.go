package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseClock parses a "HH:MM" time of day into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("bad time of day %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("bad hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad minute in %q", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// ResolveWindow turns the configured times of day into the absolute charge
// window for the current cycle. When the finish time has already passed
// today it binds to tomorrow, while the earliest start resolves on its own
// clock: once its time of day has passed the bound is in effect and the
// window opens at now, so the hours between now and midnight stay eligible
// for an overnight deadline.
func ResolveWindow(now time.Time, earliest, latest time.Duration) (time.Time, time.Time) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	finish := midnight.Add(latest)
	if !finish.After(now) {
		finish = finish.Add(24 * time.Hour)
	}
	start := midnight.Add(earliest)
	if start.Before(now) {
		start = now
	}
	return start, finish
}
