package timetable

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Reserved keys in a raw schedule record. Everything else is either a
// timetabled stop or display-only metadata.
const (
	keyTrain     = "Tren"
	keyLine      = "Linia"
	keyDirection = "A/D"
)

// Stop is one timetabled call of an itinerary.
type Stop struct {
	Station string
	Time    string // raw "HH:MM" from the schedule file
	T       TimeOfDay
	Valid   bool // false when Time did not parse
}

// Itinerary is one static scheduled run. Stops hold every non-reserved,
// non-empty field of the source record; fields whose value is not a
// parseable time (duty identifiers and the like) survive decoding but are
// flagged invalid so matching never considers them.
type Itinerary struct {
	Train     string
	Line      string
	Direction string // "A" ascending, "D" descending

	stops   map[string]string
	ordered []Stop
}

// UnmarshalJSON decodes the schedule file's record shape: three reserved
// keys plus an open set of station-name keys mapping to "HH:MM" strings.
func (it *Itinerary) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	it.Train = raw[keyTrain]
	it.Line = raw[keyLine]
	it.Direction = raw[keyDirection]
	it.stops = make(map[string]string, len(raw))
	for k, v := range raw {
		if k == keyTrain || k == keyLine || k == keyDirection || v == "" {
			continue
		}
		it.stops[k] = v
	}
	it.ordered = orderStops(it.stops)
	return nil
}

// LinePrefix returns the two-character line code used for matching;
// schedule files carry variants like "R5a" that all match line "R5".
func (it *Itinerary) LinePrefix() string {
	if len(it.Line) < 2 {
		return it.Line
	}
	return it.Line[:2]
}

// TimeAt returns the raw scheduled time for a station, or "" if the
// itinerary does not call there.
func (it *Itinerary) TimeAt(station string) string {
	return it.stops[station]
}

// OrderedStops returns the canonical chronological stop sequence.
// Source records are unordered mappings, so this ordering is the only
// sequence the rest of the system ever sees. The slice is shared; callers
// must not mutate it.
func (it *Itinerary) OrderedStops() []Stop {
	return it.ordered
}

// Metadata returns the non-stop fields (entries whose value is not a
// time), preserved for display only.
func (it *Itinerary) Metadata() map[string]string {
	meta := map[string]string{}
	for _, s := range it.ordered {
		if !s.Valid {
			meta[s.Station] = s.Time
		}
	}
	return meta
}

// orderStops sorts stops chronologically with the midnight rollover
// applied. Unparseable entries go last; station name breaks ties so the
// order is deterministic regardless of map iteration.
func orderStops(stops map[string]string) []Stop {
	out := make([]Stop, 0, len(stops))
	for station, raw := range stops {
		s := Stop{Station: station, Time: raw}
		if t, err := ParseTimeOfDay(raw); err == nil {
			s.T = t
			s.Valid = true
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Valid != b.Valid {
			return a.Valid
		}
		if !a.Valid {
			return a.Station < b.Station
		}
		if a.T.Adjusted() != b.T.Adjusted() {
			return a.T.Adjusted() < b.T.Adjusted()
		}
		return a.Station < b.Station
	})
	return out
}

// Validate reports whether the itinerary is usable for matching.
func (it *Itinerary) Validate() error {
	if it.Train == "" {
		return fmt.Errorf("itinerary missing %s field", keyTrain)
	}
	if it.Direction != "A" && it.Direction != "D" {
		return fmt.Errorf("train %s: direction %q is not A or D", it.Train, it.Direction)
	}
	return nil
}
