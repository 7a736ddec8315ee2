package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

// RTClient adapts a GTFS-RT VehiclePositions feed into live reports.
// GTFS-RT carries no upcoming-stops list, so reports from this source
// match on time proximity and current station alone.
type RTClient struct {
	feedURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewRTClient creates a GTFS-RT vehicle positions client.
func NewRTClient(feedURL string, logger *slog.Logger) *RTClient {
	return &RTClient{
		feedURL: feedURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

// FetchReports downloads and decodes the current vehicle positions.
func (c *RTClient) FetchReports(ctx context.Context) ([]Report, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, c.feedURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}

	msg := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(body, msg); err != nil {
		return nil, fmt.Errorf("parse feed protobuf: %w", err)
	}

	var reports []Report
	for _, entity := range msg.GetEntity() {
		vp := entity.GetVehicle()
		if vp == nil {
			continue
		}
		r := Report{
			VehicleID:   vp.GetVehicle().GetId(),
			Line:        vp.GetTrip().GetRouteId(),
			Direction:   directionFromID(vp.GetTrip().GetDirectionId()),
			StationedAt: vp.GetStopId(),
			UnitType:    vp.GetVehicle().GetLabel(),
		}
		if r.VehicleID == "" {
			r.VehicleID = entity.GetId()
		}
		if pos := vp.GetPosition(); pos != nil {
			r.Lon = float64(pos.GetLongitude())
			r.Lat = float64(pos.GetLatitude())
		}
		reports = append(reports, r)
	}

	c.logger.Info("GTFS-RT feed fetched", "vehicles", len(reports))
	return reports, nil
}

// directionFromID maps GTFS direction_id onto the tracker's A/D encoding:
// 0 is the ascending direction by FGC convention.
func directionFromID(id uint32) string {
	if id == 0 {
		return "A"
	}
	return "D"
}
