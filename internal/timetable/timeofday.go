package timetable

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// Times earlier than 04:00 belong to services that ran past midnight,
	// so for ordering they count as the next day.
	rolloverCutoffMinutes = 240
	minutesPerDay         = 1440
)

// TimeOfDay is a schedule instant expressed as whole minutes since midnight.
// All schedule arithmetic is minute-precision; seconds never enter.
type TimeOfDay int

// ParseTimeOfDay parses an "HH:MM" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("malformed time %q", s)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, fmt.Errorf("malformed hour in %q", s)
	}
	m, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, fmt.Errorf("malformed minute in %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time %q out of range", s)
	}
	return TimeOfDay(h*60 + m), nil
}

// Now truncates a wall-clock instant to its minute of day.
func Now(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

// Adjusted returns the rollover-corrected minute count used for ordering:
// anything before 04:00 is pushed one day later so overnight services sort
// after the evening ones instead of before them.
func (t TimeOfDay) Adjusted() int {
	if int(t) < rolloverCutoffMinutes {
		return int(t) + minutesPerDay
	}
	return int(t)
}

// DiffMinutes returns the absolute difference in minutes between two
// times of day, without rollover adjustment.
func (t TimeOfDay) DiffMinutes(other TimeOfDay) int {
	d := int(t) - int(other)
	if d < 0 {
		d = -d
	}
	return d
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}
