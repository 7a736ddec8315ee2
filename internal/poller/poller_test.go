package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/fgcagents/geomatching/internal/feed"
	"github.com/fgcagents/geomatching/internal/match"
	"github.com/fgcagents/geomatching/internal/timetable"
)

type stubSource struct {
	mu      sync.Mutex
	reports []feed.Report
	err     error
	block   chan struct{}
	calls   int
}

func (s *stubSource) FetchReports(ctx context.Context) ([]feed.Report, error) {
	s.mu.Lock()
	s.calls++
	block := s.block
	reports, err := s.reports, s.err
	s.mu.Unlock()
	if block != nil {
		<-block
	}
	return reports, err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// liveEngine returns an engine with one itinerary stopping "now", so a
// wall-clock Poll can match it.
func liveEngine(t *testing.T) (*match.Engine, feed.Report) {
	t.Helper()
	now := timetable.Now(time.Now())
	e := match.NewEngine(match.Options{}, discard())
	e.LoadItineraries([]timetable.Itinerary{mustItinerary(t, now)})
	report := feed.Report{
		VehicleID:   "v1",
		Line:        "R5",
		Direction:   "A",
		StationedAt: "Alpha",
		Upcoming:    []string{"Beta"},
		Lon:         1.9, Lat: 41.4,
	}
	return e, report
}

func mustItinerary(t *testing.T, now timetable.TimeOfDay) timetable.Itinerary {
	t.Helper()
	next := (now + 5) % (24 * 60)
	raw := fmt.Sprintf(`{"Tren":"777","Linia":"R5","A/D":"A","Alpha":%q,"Beta":%q}`,
		now.String(), next.String())
	var it timetable.Itinerary
	if err := json.Unmarshal([]byte(raw), &it); err != nil {
		t.Fatalf("bad itinerary fixture: %v", err)
	}
	return it
}

func TestRunCycle_MatchesAndNotifies(t *testing.T) {
	engine, report := liveEngine(t)
	src := &stubSource{reports: []feed.Report{report}}
	p := New(src, engine, time.Second, nil, nil, discard())

	ch, cancel := p.Subscribe()
	defer cancel()

	cycle, err := p.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if cycle.Assigned != 1 || len(cycle.Matches) != 1 {
		t.Fatalf("cycle = %+v, want one assignment and one match", cycle)
	}
	if cycle.Matches[0].Train != "777" {
		t.Errorf("matched train = %q, want 777", cycle.Matches[0].Train)
	}

	select {
	case got := <-ch:
		if got.Assigned != 1 {
			t.Errorf("broadcast cycle = %+v", got)
		}
	default:
		t.Error("subscriber was not notified")
	}

	if p.LastCycle().IsZero() {
		t.Error("LastCycle should be set after a cycle")
	}
}

func TestRunCycle_NoSchedule(t *testing.T) {
	engine := match.NewEngine(match.Options{}, discard())
	src := &stubSource{}
	p := New(src, engine, time.Second, nil, nil, discard())

	if _, err := p.RunCycle(context.Background()); !errors.Is(err, ErrNoSchedule) {
		t.Fatalf("err = %v, want ErrNoSchedule", err)
	}
	if src.calls != 0 {
		t.Errorf("feed was fetched %d times without a schedule", src.calls)
	}
}

func TestRunCycle_FeedErrorPurges(t *testing.T) {
	engine, report := liveEngine(t)
	src := &stubSource{reports: []feed.Report{report}}
	p := New(src, engine, time.Second, nil, nil, discard())

	if _, err := p.RunCycle(context.Background()); err != nil {
		t.Fatalf("seed cycle: %v", err)
	}
	if len(engine.Assignments()) != 1 {
		t.Fatal("seed cycle should assign v1")
	}

	src.mu.Lock()
	src.err = errors.New("upstream down")
	src.mu.Unlock()

	cycle, err := p.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle after feed error: %v", err)
	}
	if cycle.Purged != 1 {
		t.Errorf("purged = %d, want 1", cycle.Purged)
	}
	if len(engine.Assignments()) != 0 {
		t.Error("assignments should be empty after an all-absent cycle")
	}
}

func TestRunCycle_SkipsWhileInFlight(t *testing.T) {
	engine, report := liveEngine(t)
	block := make(chan struct{})
	src := &stubSource{reports: []feed.Report{report}, block: block}
	p := New(src, engine, time.Second, nil, nil, discard())

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := p.RunCycle(context.Background()); err != nil {
			t.Errorf("blocked cycle: %v", err)
		}
	}()

	// Wait for the first cycle to reach the feed fetch.
	deadline := time.After(2 * time.Second)
	for {
		src.mu.Lock()
		started := src.calls > 0
		src.mu.Unlock()
		if started {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first cycle never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if _, err := p.RunCycle(context.Background()); !errors.Is(err, ErrCycleInFlight) {
		t.Fatalf("err = %v, want ErrCycleInFlight", err)
	}

	close(block)
	<-done
}
