package match

import (
	"encoding/json"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/fgcagents/geomatching/internal/feed"
	"github.com/fgcagents/geomatching/internal/timetable"
)

func testEngine(t *testing.T, itineraries ...string) *Engine {
	t.Helper()
	e := NewEngine(Options{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	var its []timetable.Itinerary
	for _, raw := range itineraries {
		var it timetable.Itinerary
		if err := json.Unmarshal([]byte(raw), &it); err != nil {
			t.Fatalf("bad itinerary fixture: %v", err)
		}
		its = append(its, it)
	}
	if len(its) > 0 {
		e.LoadItineraries(its)
	}
	return e
}

func at(t *testing.T, clock string) timetable.TimeOfDay {
	t.Helper()
	v, err := timetable.ParseTimeOfDay(clock)
	if err != nil {
		t.Fatalf("bad clock fixture %q: %v", clock, err)
	}
	return v
}

func TestPoll_EndToEnd(t *testing.T) {
	e := testEngine(t,
		`{"Tren":"101","Linia":"R5","A/D":"A","StationA":"10:00","StationB":"10:10"}`)

	reports := []feed.Report{{
		VehicleID:   "v1",
		Line:        "R5a",
		Direction:   "A",
		StationedAt: "StationA",
		Upcoming:    []string{"StationB"},
		Lon:         1.9, Lat: 41.4,
	}}

	cycle := e.Poll(reports, at(t, "10:02"))

	want := []Match{{Train: "101", Line: "R5", Direction: "A", Station: "StationA", Time: "10:00", Matched: true}}
	if !reflect.DeepEqual(cycle.Matches, want) {
		t.Errorf("matches = %+v, want %+v", cycle.Matches, want)
	}
	if cycle.Assigned != 1 {
		t.Errorf("assigned = %d, want 1", cycle.Assigned)
	}

	a, ok := e.Assignments()["v1"]
	if !ok {
		t.Fatal("v1 should be in the assignment cache")
	}
	if a.Train != "101" || a.NextStation != "StationB" || a.Lon != 1.9 {
		t.Errorf("assignment = %+v", a)
	}
}

func TestPoll_Deterministic(t *testing.T) {
	fixtures := []string{
		`{"Tren":"101","Linia":"R5","A/D":"A","A":"10:00","B":"10:05","C":"10:10"}`,
		`{"Tren":"102","Linia":"R5","A/D":"A","A":"10:04","B":"10:09","C":"10:14"}`,
		`{"Tren":"201","Linia":"S4","A/D":"D","X":"10:01","Y":"10:06"}`,
	}
	reports := []feed.Report{
		{VehicleID: "v1", Line: "R5", Direction: "A", StationedAt: "A", Upcoming: []string{"B", "C"}},
		{VehicleID: "v2", Line: "S4", Direction: "D", Upcoming: []string{"X", "Y"}},
	}

	first := testEngine(t, fixtures...).Poll(reports, at(t, "10:02"))
	second := testEngine(t, fixtures...).Poll(reports, at(t, "10:02"))

	if !reflect.DeepEqual(first.Matches, second.Matches) {
		t.Errorf("matching is not deterministic:\n%+v\n%+v", first.Matches, second.Matches)
	}
}

func TestPoll_CacheStickiness(t *testing.T) {
	// Train 102's call at 10:02 would outscore 101's at cycle two, but the
	// vehicle already holds 101 and still satisfies it, so it must keep it.
	e := testEngine(t,
		`{"Tren":"101","Linia":"R5","A/D":"A","A":"10:00","B":"10:10"}`,
		`{"Tren":"102","Linia":"R5","A/D":"A","A":"10:02","B":"10:12"}`)

	report := feed.Report{VehicleID: "v1", Line: "R5", Direction: "A", StationedAt: "A", Upcoming: []string{"B"}}

	e.Poll([]feed.Report{report}, at(t, "10:00"))
	if got := e.Assignments()["v1"].Train; got != "101" {
		t.Fatalf("cycle 1 assigned %q, want 101", got)
	}

	e.Poll([]feed.Report{report}, at(t, "10:02"))
	if got := e.Assignments()["v1"].Train; got != "101" {
		t.Errorf("cycle 2 reassigned to %q, want sticky 101", got)
	}
}

func TestPoll_BrokenAssignmentRematchesSameCycle(t *testing.T) {
	e := testEngine(t,
		`{"Tren":"101","Linia":"R5","A/D":"A","A":"10:00","B":"10:10"}`,
		`{"Tren":"102","Linia":"R5","A/D":"A","C":"11:00","D":"11:10"}`)

	r := feed.Report{VehicleID: "v1", Line: "R5", Direction: "A", StationedAt: "A", Upcoming: []string{"B"}}
	e.Poll([]feed.Report{r}, at(t, "10:00"))
	if got := e.Assignments()["v1"].Train; got != "101" {
		t.Fatalf("setup: assigned %q, want 101", got)
	}

	// An hour later the vehicle reports from 102's territory: 101 no longer
	// satisfies the window, so the cache entry breaks and the fresh search
	// lands on 102 within the same cycle.
	r2 := feed.Report{VehicleID: "v1", Line: "R5", Direction: "A", StationedAt: "C", Upcoming: []string{"D"}}
	cycle := e.Poll([]feed.Report{r2}, at(t, "11:00"))

	if got := e.Assignments()["v1"].Train; got != "102" {
		t.Errorf("rematched to %q, want 102", got)
	}
	if len(cycle.Matches) != 1 || cycle.Matches[0].Train != "102" {
		t.Errorf("matches = %+v, want single match for 102", cycle.Matches)
	}
}

func TestPoll_PurgeBeforeMatching(t *testing.T) {
	e := testEngine(t, `{"Tren":"101","Linia":"R5","A/D":"A","A":"10:00","B":"10:10"}`)

	r := feed.Report{VehicleID: "v1", Line: "R5", Direction: "A", StationedAt: "A", Upcoming: []string{"B"}}
	e.Poll([]feed.Report{r}, at(t, "10:00"))

	// v1 disappears from the feed entirely.
	cycle := e.Poll(nil, at(t, "10:01"))
	if cycle.Purged != 1 {
		t.Errorf("purged = %d, want 1", cycle.Purged)
	}
	if cycle.Assigned != 0 {
		t.Errorf("assigned = %d, want 0", cycle.Assigned)
	}
	if len(cycle.Matches) != 0 {
		t.Errorf("a purged vehicle must not appear in cycle output, got %+v", cycle.Matches)
	}
	if _, ok := e.Assignments()["v1"]; ok {
		t.Error("v1 should be gone from the cache")
	}
}

func TestPoll_TieBreakFirstFound(t *testing.T) {
	// Identical timetables: equal scores, first enumerated itinerary wins.
	e := testEngine(t,
		`{"Tren":"101","Linia":"R5","A/D":"A","A":"10:00","B":"10:10"}`,
		`{"Tren":"102","Linia":"R5","A/D":"A","A":"10:00","B":"10:10"}`)

	r := feed.Report{VehicleID: "v1", Line: "R5", Direction: "A", StationedAt: "A", Upcoming: []string{"B"}}
	cycle := e.Poll([]feed.Report{r}, at(t, "10:00"))

	if len(cycle.Matches) != 1 || cycle.Matches[0].Train != "101" {
		t.Errorf("matches = %+v, want first-found train 101", cycle.Matches)
	}
}

func TestPoll_ClaimPreventsDoubleAssignment(t *testing.T) {
	e := testEngine(t,
		`{"Tren":"101","Linia":"R5","A/D":"A","A":"10:00","B":"10:10"}`,
		`{"Tren":"102","Linia":"R5","A/D":"A","A":"10:01","B":"10:11"}`)

	reports := []feed.Report{
		{VehicleID: "v1", Line: "R5", Direction: "A", StationedAt: "A", Upcoming: []string{"B"}},
		{VehicleID: "v2", Line: "R5", Direction: "A", StationedAt: "A", Upcoming: []string{"B"}},
	}
	cycle := e.Poll(reports, at(t, "10:00"))

	if len(cycle.Matches) != 2 {
		t.Fatalf("matches = %+v, want both vehicles matched", cycle.Matches)
	}
	if cycle.Matches[0].Train == cycle.Matches[1].Train {
		t.Errorf("both vehicles claimed train %s", cycle.Matches[0].Train)
	}
}

func TestPoll_LineAllowList(t *testing.T) {
	e := testEngine(t, `{"Tren":"901","Linia":"R1","A/D":"A","A":"10:00","B":"10:10"}`)

	r := feed.Report{VehicleID: "v1", Line: "R1", Direction: "A", StationedAt: "A", Upcoming: []string{"B"}}
	cycle := e.Poll([]feed.Report{r}, at(t, "10:00"))

	if len(cycle.Matches) != 0 || cycle.Assigned != 0 {
		t.Errorf("R1 is not on the allow-list, got %+v", cycle)
	}
}

func TestPoll_OutsideWindowStaysUnmatched(t *testing.T) {
	e := testEngine(t, `{"Tren":"101","Linia":"R5","A/D":"A","A":"10:00","B":"10:10"}`)

	r := feed.Report{VehicleID: "v1", Line: "R5", Direction: "A", StationedAt: "A", Upcoming: []string{"B"}}
	cycle := e.Poll([]feed.Report{r}, at(t, "10:30"))

	if len(cycle.Matches) != 0 || cycle.Assigned != 0 {
		t.Errorf("no candidate within ±10 min, got %+v", cycle)
	}
}

func TestPoll_DirectionMustMatch(t *testing.T) {
	e := testEngine(t, `{"Tren":"101","Linia":"R5","A/D":"D","A":"10:00","B":"10:10"}`)

	r := feed.Report{VehicleID: "v1", Line: "R5", Direction: "A", StationedAt: "A", Upcoming: []string{"B"}}
	if cycle := e.Poll([]feed.Report{r}, at(t, "10:00")); len(cycle.Matches) != 0 {
		t.Errorf("descending itinerary matched an ascending report: %+v", cycle.Matches)
	}
}

func TestPoll_StaleWhenItineraryClaimed(t *testing.T) {
	// Two vehicles assigned to the same train across earlier cycles can
	// happen; within one cycle the second holder is left stale, not purged.
	e := testEngine(t,
		`{"Tren":"101","Linia":"R5","A/D":"A","A":"10:00","B":"10:10","C":"10:20"}`)

	r1 := feed.Report{VehicleID: "v1", Line: "R5", Direction: "A", StationedAt: "A", Upcoming: []string{"B"}}
	e.Poll([]feed.Report{r1}, at(t, "10:00"))

	// Force a second holder of 101 by polling v2 alone (v1 absent purges it).
	r2 := feed.Report{VehicleID: "v2", Line: "R5", Direction: "A", StationedAt: "B", Upcoming: []string{"C"}}
	e.Poll([]feed.Report{r2}, at(t, "10:10"))
	if got := e.Assignments()["v2"].Train; got != "101" {
		t.Fatalf("setup: v2 assigned %q, want 101", got)
	}

	// Now both report; v1 was purged so only v2 holds 101 and confirms it.
	cycle := e.Poll([]feed.Report{r1, r2}, at(t, "10:10"))
	trains := map[string]string{}
	for id, a := range e.Assignments() {
		trains[id] = a.Train
	}
	if trains["v2"] != "101" {
		t.Errorf("v2 lost its confirmed assignment: %v (cycle %+v)", trains, cycle)
	}
}

func TestPoll_CaseAUpdatesVolatileFields(t *testing.T) {
	e := testEngine(t, `{"Tren":"101","Linia":"R5","A/D":"A","A":"10:00","B":"10:10","C":"10:20"}`)

	r := feed.Report{VehicleID: "v1", Line: "R5", Direction: "A", StationedAt: "A", Upcoming: []string{"B", "C"}, Lon: 1.0, Lat: 41.0}
	e.Poll([]feed.Report{r}, at(t, "10:00"))

	moved := feed.Report{VehicleID: "v1", Line: "R5", Direction: "A", StationedAt: "B", Upcoming: []string{"C"}, Lon: 1.1, Lat: 41.1, UnitType: "115"}
	e.Poll([]feed.Report{moved}, at(t, "10:09"))

	a := e.Assignments()["v1"]
	if a.Lon != 1.1 || a.Lat != 41.1 {
		t.Errorf("coordinates not refreshed: %+v", a)
	}
	if a.NextStation != "C" {
		t.Errorf("next station = %q, want C", a.NextStation)
	}
	if a.UnitType != "115" {
		t.Errorf("unit type = %q, want 115", a.UnitType)
	}
}

func TestPoll_NoUpcomingMatchesOnStationAlone(t *testing.T) {
	// GTFS-RT sourced reports carry no upcoming list; an exact station hit
	// within the window is still enough for a fresh match.
	e := testEngine(t, `{"Tren":"101","Linia":"R5","A/D":"A","A":"10:00","B":"10:10"}`)

	r := feed.Report{VehicleID: "v1", Line: "R5", Direction: "A", StationedAt: "A"}
	cycle := e.Poll([]feed.Report{r}, at(t, "10:01"))

	if len(cycle.Matches) != 1 || cycle.Matches[0].Train != "101" {
		t.Errorf("matches = %+v, want 101 on station proximity alone", cycle.Matches)
	}
}

func TestLoadItineraries_ClearsCache(t *testing.T) {
	e := testEngine(t, `{"Tren":"101","Linia":"R5","A/D":"A","A":"10:00","B":"10:10"}`)
	r := feed.Report{VehicleID: "v1", Line: "R5", Direction: "A", StationedAt: "A", Upcoming: []string{"B"}}
	e.Poll([]feed.Report{r}, at(t, "10:00"))

	var it timetable.Itinerary
	if err := json.Unmarshal([]byte(`{"Tren":"500","Linia":"S3","A/D":"A","X":"12:00"}`), &it); err != nil {
		t.Fatal(err)
	}
	e.LoadItineraries([]timetable.Itinerary{it})

	if n := e.AssignedCount(); n != 0 {
		t.Errorf("cache not cleared on schedule replacement: %d entries", n)
	}
	if m := e.LastMatches(); len(m) != 0 {
		t.Errorf("stale matches survived replacement: %+v", m)
	}
}
