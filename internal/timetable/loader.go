package timetable

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Load decodes a schedule file: a JSON array of itinerary records.
// Records that decode but fail validation are skipped with a warning
// rather than failing the whole file; a file that does not decode at
// all returns an error and the caller keeps its previous set.
func Load(r io.Reader, logger *slog.Logger) ([]Itinerary, error) {
	var raw []Itinerary
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}

	out := make([]Itinerary, 0, len(raw))
	for _, it := range raw {
		if err := it.Validate(); err != nil {
			logger.Warn("skipping schedule record", "error", err)
			continue
		}
		out = append(out, it)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("schedule contains no usable itineraries")
	}

	logger.Info("schedule loaded", "itineraries", len(out), "skipped", len(raw)-len(out))
	return out, nil
}

// LoadFile reads a schedule from a local path.
func LoadFile(path string, logger *slog.Logger) ([]Itinerary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schedule file: %w", err)
	}
	defer f.Close()
	return Load(f, logger)
}
