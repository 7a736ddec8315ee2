package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fgcagents/geomatching/internal/config"
	"github.com/fgcagents/geomatching/internal/feed"
	"github.com/fgcagents/geomatching/internal/match"
	"github.com/fgcagents/geomatching/internal/metrics"
	"github.com/fgcagents/geomatching/internal/poller"
	"github.com/fgcagents/geomatching/internal/publisher"
	"github.com/fgcagents/geomatching/internal/server"
	"github.com/fgcagents/geomatching/internal/storage"
	"github.com/fgcagents/geomatching/internal/timetable"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// CLI flags
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the SQLite database")
	flag.StringVar(&cfg.SchedulePath, "schedule", cfg.SchedulePath, "Schedule JSON to load at startup")
	flag.Parse()

	// Context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open database
	db, err := storage.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	profile := cfg.Profile

	engine := match.NewEngine(match.Options{
		Lines:         profile.Lines,
		WindowMinutes: profile.WindowMinutes,
	}, logger)

	restoreSchedule(ctx, engine, db, cfg.SchedulePath, logger)

	// Live feed source
	var source feed.Source
	switch profile.FeedKind {
	case "gtfsrt":
		source = feed.NewRTClient(profile.FeedURL, logger)
	default:
		source = feed.NewClient(profile.FeedURL, logger)
	}

	// Optional NATS publisher for downstream consumers
	var pub *publisher.NATSPublisher
	if cfg.NATSURL != "" {
		pub, err = publisher.New(cfg.NATSURL, cfg.NATSSubject, logger)
		if err != nil {
			logger.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer pub.Close()
	}

	// Optional Prometheus endpoint
	var mc *metrics.Collector
	if cfg.MetricsAddr != "" {
		mc = metrics.NewCollector()
		go mc.Serve(cfg.MetricsAddr, logger)
	}

	poll := poller.New(source, engine, time.Duration(profile.PollSeconds)*time.Second, mc, pub, logger)
	go poll.Start(ctx)

	// Start HTTP server
	srv := server.New(cfg, &profile, engine, db, poll, logger)

	// Graceful shutdown on SIGINT/SIGTERM
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
		os.Exit(0)
	}()

	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// restoreSchedule loads a persisted schedule from the database, or from
// a startup file when the database has none.
func restoreSchedule(ctx context.Context, engine *match.Engine, db *storage.DB, schedulePath string, logger *slog.Logger) {
	records, err := db.AllItineraryRecords(ctx)
	if err != nil {
		logger.Error("reading persisted schedule", "error", err)
	}
	if len(records) > 0 {
		var its []timetable.Itinerary
		for _, rec := range records {
			var it timetable.Itinerary
			if err := json.Unmarshal([]byte(rec.Record), &it); err != nil {
				logger.Warn("skipping persisted itinerary", "train", rec.Train, "error", err)
				continue
			}
			its = append(its, it)
		}
		if len(its) > 0 {
			engine.LoadItineraries(its)
			logger.Info("schedule restored from database", "itineraries", len(its))
			return
		}
	}

	if schedulePath == "" {
		logger.Info("no schedule loaded; waiting for upload")
		return
	}
	its, err := timetable.LoadFile(schedulePath, logger)
	if err != nil {
		logger.Error("loading startup schedule", "path", schedulePath, "error", err)
		return
	}
	engine.LoadItineraries(its)
	logger.Info("schedule loaded from file", "path", schedulePath, "itineraries", len(its))
}
