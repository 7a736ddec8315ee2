package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Source supplies one cycle's worth of live reports. The GeoJSON tracker
// is the primary implementation; the GTFS-RT adapter is the alternate.
type Source interface {
	FetchReports(ctx context.Context) ([]Report, error)
}

// Client fetches the live tracker's GeoJSON feed.
type Client struct {
	feedURL string
	client  *http.Client
	cache   *Cache
	logger  *slog.Logger
}

// NewClient creates a tracker feed client.
func NewClient(feedURL string, logger *slog.Logger) *Client {
	return &Client{
		feedURL: feedURL,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		cache:  NewCache(5 * time.Second),
		logger: logger,
	}
}

// FetchReports downloads and decodes the current vehicle set.
// A non-200 status or transport failure is an error; the caller decides
// what a failed cycle means (it keeps prior state, per the cycle rules).
func (c *Client) FetchReports(ctx context.Context) ([]Report, error) {
	if cached, ok := c.cache.Get("reports"); ok {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, c.feedURL)
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	reports := make([]Report, 0, len(fc.Features))
	for i := range fc.Features {
		reports = append(reports, fc.Features[i].toReport())
	}

	c.cache.Set("reports", reports)
	c.logger.Info("live feed fetched", "vehicles", len(reports))
	return reports, nil
}
