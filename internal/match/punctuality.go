package match

import (
	"math"
	"time"

	"github.com/fgcagents/geomatching/internal/timetable"
)

// DefaultDelayThreshold is the number of minutes behind schedule at which
// a vehicle stops counting as on time.
const DefaultDelayThreshold = 2

// Punctuality classifies a vehicle against one scheduled call.
type Punctuality struct {
	Delayed bool
	Minutes int // lateness in minutes; meaningful only when Delayed
}

// Classify compares a stop's scheduled "HH:MM" against wall-clock now.
// The scheduled instant is anchored to now's calendar day with seconds
// zeroed. Only lateness is flagged: a vehicle running early folds into
// on-time. The second return is false when the time does not parse.
func Classify(scheduled string, now time.Time, threshold int) (Punctuality, bool) {
	t, err := timetable.ParseTimeOfDay(scheduled)
	if err != nil {
		return Punctuality{}, false
	}
	instant := time.Date(now.Year(), now.Month(), now.Day(), int(t)/60, int(t)%60, 0, 0, now.Location())
	diffMin := int(math.Round(now.Sub(instant).Minutes()))
	if diffMin >= threshold {
		return Punctuality{Delayed: true, Minutes: diffMin}, true
	}
	return Punctuality{}, true
}
