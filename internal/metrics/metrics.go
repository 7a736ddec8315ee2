package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the service's Prometheus instruments on a private
// registry so the metrics endpoint exposes only what we register.
type Collector struct {
	reg *prometheus.Registry

	AssignedVehicles  prometheus.Gauge
	LoadedItineraries prometheus.Gauge

	CyclesTotal   prometheus.Counter
	CyclesSkipped prometheus.Counter
	FeedErrors    prometheus.Counter
	MatchesTotal  prometheus.Counter
	PurgedTotal   prometheus.Counter

	CycleDuration prometheus.Histogram
	Displacement  prometheus.Histogram
}

// NewCollector registers all instruments on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		AssignedVehicles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "geomatching_assigned_vehicles",
			Help: "Vehicles currently holding an assignment.",
		}),
		LoadedItineraries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "geomatching_loaded_itineraries",
			Help: "Itineraries in the loaded schedule set.",
		}),
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geomatching_cycles_total",
			Help: "Completed polling cycles.",
		}),
		CyclesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geomatching_cycles_skipped_total",
			Help: "Ticks skipped because a cycle was still in flight.",
		}),
		FeedErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geomatching_feed_errors_total",
			Help: "Live feed fetches that failed.",
		}),
		MatchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geomatching_matches_total",
			Help: "Match records emitted across all cycles.",
		}),
		PurgedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geomatching_purged_vehicles_total",
			Help: "Cached vehicles purged after leaving the feed.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "geomatching_cycle_duration_seconds",
			Help:    "Wall time of one fetch-and-match cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		Displacement: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "geomatching_vehicle_displacement_meters",
			Help:    "Distance an assigned vehicle moved between cycles.",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
	}

	reg.MustRegister(
		c.AssignedVehicles, c.LoadedItineraries,
		c.CyclesTotal, c.CyclesSkipped, c.FeedErrors, c.MatchesTotal, c.PurgedTotal,
		c.CycleDuration, c.Displacement,
	)
	return c
}

// CycleObserve records one cycle's duration.
func (c *Collector) CycleObserve(d time.Duration) {
	c.CycleDuration.Observe(d.Seconds())
}

// Serve exposes /metrics on addr. Blocks; run in a goroutine.
func (c *Collector) Serve(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}))
	logger.Info("metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", "error", err)
	}
}
