package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fgcagents/geomatching/internal/feed"
	"github.com/fgcagents/geomatching/internal/geo"
	"github.com/fgcagents/geomatching/internal/match"
	"github.com/fgcagents/geomatching/internal/metrics"
	"github.com/fgcagents/geomatching/internal/publisher"
	"github.com/fgcagents/geomatching/internal/timetable"
)

// ErrNoSchedule means a cycle was requested before any schedule was loaded.
var ErrNoSchedule = errors.New("no schedule loaded")

// ErrCycleInFlight means a cycle is already running; the request was skipped.
var ErrCycleInFlight = errors.New("cycle already in flight")

// Poller drives the fetch-and-match loop: one blocking feed fetch, one
// synchronous matching pass, then hand-off to consumers. A tick that
// lands while a cycle is still running is skipped, never queued.
type Poller struct {
	source   feed.Source
	engine   *match.Engine
	interval time.Duration
	mc       *metrics.Collector
	pub      *publisher.NATSPublisher
	logger   *slog.Logger

	inFlight  atomic.Bool
	lastCycle atomic.Int64 // unix seconds of last completed cycle

	mu   sync.Mutex
	subs map[chan match.Cycle]struct{}
}

// New creates a Poller. The metrics collector and publisher may be nil.
func New(source feed.Source, engine *match.Engine, interval time.Duration, mc *metrics.Collector, pub *publisher.NATSPublisher, logger *slog.Logger) *Poller {
	return &Poller{
		source:   source,
		engine:   engine,
		interval: interval,
		mc:       mc,
		pub:      pub,
		logger:   logger,
		subs:     map[chan match.Cycle]struct{}{},
	}
}

// Start begins the polling loop. Blocks until the context is cancelled.
func (p *Poller) Start(ctx context.Context) {
	if _, err := p.RunCycle(ctx); err != nil && !errors.Is(err, ErrNoSchedule) {
		p.logger.Warn("initial cycle failed", "error", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := p.RunCycle(ctx); err != nil &&
				!errors.Is(err, ErrNoSchedule) && !errors.Is(err, ErrCycleInFlight) {
				p.logger.Warn("cycle failed", "error", err)
			}
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return
		}
	}
}

// RunCycle executes one full cycle now. A feed failure is not an error:
// the cycle proceeds with an empty report set, which purges every cached
// vehicle (absent ids are removed before matching runs).
func (p *Poller) RunCycle(ctx context.Context) (match.Cycle, error) {
	if !p.inFlight.CompareAndSwap(false, true) {
		if p.mc != nil {
			p.mc.CyclesSkipped.Inc()
		}
		return match.Cycle{}, ErrCycleInFlight
	}
	defer p.inFlight.Store(false)

	if !p.engine.HasSchedule() {
		return match.Cycle{}, ErrNoSchedule
	}

	start := time.Now()
	prev := p.engine.Assignments()

	reports, err := p.source.FetchReports(ctx)
	if err != nil {
		p.logger.Warn("live feed unavailable", "error", err)
		if p.mc != nil {
			p.mc.FeedErrors.Inc()
		}
		reports = nil
	}

	cycle := p.engine.Poll(reports, timetable.Now(time.Now()))
	p.lastCycle.Store(time.Now().Unix())

	p.logger.Info("cycle complete",
		"vehicles", len(reports),
		"matches", len(cycle.Matches),
		"assigned", cycle.Assigned,
		"purged", cycle.Purged,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	p.observe(cycle, prev, time.Since(start))
	p.pub.PublishMatches(cycle.Matches)
	p.broadcast(cycle)
	return cycle, nil
}

// LastCycle returns when the last cycle completed (zero time if never).
func (p *Poller) LastCycle() time.Time {
	sec := p.lastCycle.Load()
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

// Subscribe registers a consumer for cycle completions. The returned
// cancel function must be called when done. Slow consumers miss cycles
// rather than blocking the poller.
func (p *Poller) Subscribe() (<-chan match.Cycle, func()) {
	ch := make(chan match.Cycle, 1)
	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()
	cancel := func() {
		p.mu.Lock()
		delete(p.subs, ch)
		p.mu.Unlock()
	}
	return ch, cancel
}

func (p *Poller) broadcast(c match.Cycle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

// observe records cycle metrics, including how far each still-assigned
// vehicle moved since the previous cycle.
func (p *Poller) observe(cycle match.Cycle, prev map[string]match.Assignment, took time.Duration) {
	if p.mc == nil {
		return
	}
	p.mc.CyclesTotal.Inc()
	p.mc.CycleObserve(took)
	p.mc.AssignedVehicles.Set(float64(cycle.Assigned))
	p.mc.LoadedItineraries.Set(float64(p.engine.ItineraryCount()))
	p.mc.MatchesTotal.Add(float64(len(cycle.Matches)))
	p.mc.PurgedTotal.Add(float64(cycle.Purged))

	for id, a := range p.engine.Assignments() {
		if old, ok := prev[id]; ok {
			p.mc.Displacement.Observe(geo.Haversine(old.Lat, old.Lon, a.Lat, a.Lon))
		}
	}
}
