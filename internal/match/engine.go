package match

import (
	"log/slog"
	"sync"

	"github.com/fgcagents/geomatching/internal/feed"
	"github.com/fgcagents/geomatching/internal/timetable"
)

// UnknownUnitType is displayed when the feed does not report a unit type.
const UnknownUnitType = "Desconegut"

// DefaultWindowMinutes is the time-proximity tolerance: a scheduled call
// more than this many minutes from now never matches.
const DefaultWindowMinutes = 10

// DefaultLines is the allow-list of line prefixes processed by default.
var DefaultLines = []string{"R5", "R6", "S3", "S4", "S8", "S9", "L8"}

// Options configures an Engine.
type Options struct {
	Lines         []string
	WindowMinutes int
}

// Engine reconciles live vehicle reports against the loaded schedule set.
// It owns the sticky assignment cache that keeps a vehicle's identity
// stable across polling cycles, and the per-cycle claim set that stops
// one scheduled run from being handed to two vehicles at once.
//
// All state is mutated only inside Poll, LoadItineraries, and Reset; the
// read accessors take the read lock so HTTP consumers can observe the
// cache between cycles.
type Engine struct {
	mu          sync.RWMutex
	lines       map[string]bool
	window      int
	itineraries []timetable.Itinerary
	byTrain     map[string]*timetable.Itinerary
	assignments map[string]*Assignment
	lastMatches []Match
	logger      *slog.Logger
}

// NewEngine creates an Engine with no schedule loaded.
func NewEngine(opts Options, logger *slog.Logger) *Engine {
	if len(opts.Lines) == 0 {
		opts.Lines = DefaultLines
	}
	if opts.WindowMinutes <= 0 {
		opts.WindowMinutes = DefaultWindowMinutes
	}
	lines := make(map[string]bool, len(opts.Lines))
	for _, l := range opts.Lines {
		lines[l] = true
	}
	return &Engine{
		lines:       lines,
		window:      opts.WindowMinutes,
		byTrain:     map[string]*timetable.Itinerary{},
		assignments: map[string]*Assignment{},
		logger:      logger,
	}
}

// LoadItineraries replaces the schedule set wholesale and clears the
// assignment cache, as a new schedule invalidates every prior pairing.
func (e *Engine) LoadItineraries(its []timetable.Itinerary) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.itineraries = its
	e.byTrain = make(map[string]*timetable.Itinerary, len(its))
	for i := range its {
		e.byTrain[its[i].Train] = &its[i]
	}
	e.assignments = map[string]*Assignment{}
	e.lastMatches = nil
	e.logger.Info("itineraries loaded", "count", len(its))
}

// Reset drops the schedule set, the cache, and the last cycle's matches.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.itineraries = nil
	e.byTrain = map[string]*timetable.Itinerary{}
	e.assignments = map[string]*Assignment{}
	e.lastMatches = nil
}

// HasSchedule reports whether any itineraries are loaded.
func (e *Engine) HasSchedule() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.itineraries) > 0
}

// ItineraryCount returns the size of the loaded schedule set.
func (e *Engine) ItineraryCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.itineraries)
}

// Poll runs one full matching pass: purge vehicles that left the feed,
// then for each report either re-confirm its existing assignment or
// search all itineraries for the best-scoring candidate.
func (e *Engine) Poll(reports []feed.Report, now timetable.TimeOfDay) Cycle {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Vehicles absent from this cycle's feed are gone before matching
	// runs; they must not appear in any of this cycle's output.
	active := make(map[string]bool, len(reports))
	for i := range reports {
		active[reports[i].VehicleID] = true
	}
	purged := 0
	for id := range e.assignments {
		if !active[id] {
			delete(e.assignments, id)
			purged++
		}
	}

	matches := []Match{}
	claimed := map[string]bool{}

	for i := range reports {
		r := &reports[i]
		prefix := r.LinePrefix()
		if !e.lines[prefix] {
			continue
		}
		current := r.CurrentStation()

		if a, ok := e.assignments[r.VehicleID]; ok {
			if m, confirmed := e.confirmAssignment(a, r, current, prefix, now, claimed); confirmed {
				matches = append(matches, m)
				claimed[a.Train] = true
				continue
			}
			if claimed[a.Train] || e.byTrain[a.Train] == nil {
				// Itinerary gone or already claimed this cycle: leave the
				// assignment stale rather than re-searching.
				continue
			}
			delete(e.assignments, r.VehicleID)
		}

		best := e.bestCandidate(r, prefix, current, now, claimed)
		if best == nil {
			continue
		}
		m := Match{
			Train:     best.itinerary.Train,
			Line:      best.itinerary.LinePrefix(),
			Direction: r.Direction,
			Station:   current,
			Time:      best.stop.Time,
			Matched:   true,
		}
		matches = append(matches, m)
		claimed[m.Train] = true
		e.assignments[r.VehicleID] = &Assignment{
			Train:       m.Train,
			Lon:         r.Lon,
			Lat:         r.Lat,
			NextStation: firstUpcoming(r),
			OnTime:      r.OnTime,
		}
	}

	e.lastMatches = matches
	return Cycle{Matches: matches, Assigned: len(e.assignments), Purged: purged}
}

// confirmAssignment is phase one for a vehicle that already holds an
// assignment. Coordinates, next station, and unit type are refreshed
// unconditionally; the pairing itself is then re-validated against the
// assigned itinerary. Returns confirmed=false when the assignment can no
// longer be justified (caller then deletes it and re-searches), and also
// when re-validation was skipped because the itinerary is missing or its
// train is already claimed (caller must check for that case first).
func (e *Engine) confirmAssignment(a *Assignment, r *feed.Report, current, prefix string, now timetable.TimeOfDay, claimed map[string]bool) (Match, bool) {
	a.Lon, a.Lat = r.Lon, r.Lat
	a.NextStation = firstUpcoming(r)
	if r.UnitType != "" {
		a.UnitType = r.UnitType
	} else {
		a.UnitType = UnknownUnitType
	}

	it, ok := e.byTrain[a.Train]
	if !ok || claimed[a.Train] {
		return Match{}, false
	}

	stops := it.OrderedStops()
	for _, stop := range stops {
		if !stop.Valid {
			continue
		}
		if stop.T.DiffMinutes(now) > e.window {
			continue
		}
		if stop.Station != current && !containsStation(r.Upcoming, stop.Station) {
			continue
		}
		if stop.Station == current || VerifySequence(r.Upcoming, stops, stop.Station) {
			return Match{
				Train:     a.Train,
				Line:      prefix,
				Direction: r.Direction,
				Station:   current,
				Time:      stop.Time,
				Matched:   true,
			}, true
		}
	}
	return Match{}, false
}

// candidate is one scored (itinerary, stop) pair from the fresh search.
type candidate struct {
	itinerary *timetable.Itinerary
	stop      timetable.Stop
	score     int
}

// bestCandidate folds over every unclaimed itinerary on the report's line
// and direction and returns the highest-scoring qualifying stop, or nil.
// Ties keep the first candidate found: the comparison is strictly greater.
func (e *Engine) bestCandidate(r *feed.Report, prefix, current string, now timetable.TimeOfDay, claimed map[string]bool) *candidate {
	var best *candidate
	bestScore := 0
	for i := range e.itineraries {
		it := &e.itineraries[i]
		if it.LinePrefix() != prefix || it.Direction != r.Direction {
			continue
		}
		if claimed[it.Train] {
			continue
		}
		stops := it.OrderedStops()
		for _, stop := range stops {
			if !stop.Valid {
				continue
			}
			diff := stop.T.DiffMinutes(now)
			if diff > e.window {
				continue
			}
			if stop.Station != current && !containsStation(r.Upcoming, stop.Station) {
				continue
			}
			score := e.window - diff
			if stop.Station == current {
				score += 5
			}
			if VerifySequence(r.Upcoming, stops, stop.Station) {
				score += 10
			}
			if score > bestScore {
				best = &candidate{itinerary: it, stop: stop, score: score}
				bestScore = score
			}
		}
	}
	return best
}

// Assignments returns a copy of the live assignment cache.
func (e *Engine) Assignments() map[string]Assignment {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]Assignment, len(e.assignments))
	for id, a := range e.assignments {
		out[id] = *a
	}
	return out
}

// LastMatches returns the previous cycle's match records.
func (e *Engine) LastMatches() []Match {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Match, len(e.lastMatches))
	copy(out, e.lastMatches)
	return out
}

// AssignedCount returns the number of vehicles currently assigned.
func (e *Engine) AssignedCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.assignments)
}

// ItineraryByTrain looks up a loaded itinerary. The returned value is
// immutable until the next LoadItineraries and safe to read without the
// engine lock.
func (e *Engine) ItineraryByTrain(train string) (*timetable.Itinerary, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	it, ok := e.byTrain[train]
	return it, ok
}

func firstUpcoming(r *feed.Report) string {
	if len(r.Upcoming) > 0 {
		return r.Upcoming[0]
	}
	return ""
}

func containsStation(stations []string, station string) bool {
	for _, s := range stations {
		if s == station {
			return true
		}
	}
	return false
}
