package match

import "github.com/fgcagents/geomatching/internal/timetable"

// VerifySequence reports whether a vehicle's announced upcoming stops are
// a genuine prefix of the itinerary's remaining stops immediately after
// currentStation. One coincidental station name is not enough: the walk
// must produce min(2, len(upcoming)) consecutive hits, and stops and
// aborts on the first mismatch.
func VerifySequence(upcoming []string, itinerary []timetable.Stop, currentStation string) bool {
	if len(upcoming) == 0 || len(itinerary) == 0 {
		return false
	}

	current := -1
	for i, s := range itinerary {
		if s.Station == currentStation {
			current = i
			break
		}
	}
	if current == -1 {
		return false
	}

	required := 2
	if len(upcoming) < required {
		required = len(upcoming)
	}

	hits := 0
	for i := range upcoming {
		next := current + i + 1
		if next >= len(itinerary) {
			break
		}
		if upcoming[i] != itinerary[next].Station {
			break
		}
		hits++
		if hits >= required {
			return true
		}
	}
	return false
}
