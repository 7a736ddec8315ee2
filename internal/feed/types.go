package feed

import (
	"encoding/json"
	"strings"
)

// Report is one live-feed snapshot of a vehicle, normalized so the match
// engine never sees the feed's encoding quirks. Reports live for a single
// polling cycle.
type Report struct {
	VehicleID   string
	Line        string
	Direction   string // "A" or "D"
	StationedAt string // explicit "stationed at" field, may be empty
	Upcoming    []string
	Lon, Lat    float64
	UnitType    string
	OnTime      *bool // feed-asserted, absent in some feeds
}

// CurrentStation is the station the vehicle is taken to be at: the
// explicit stationed-at field when present, else the first upcoming stop.
func (r *Report) CurrentStation() string {
	if r.StationedAt != "" {
		return r.StationedAt
	}
	if len(r.Upcoming) > 0 {
		return r.Upcoming[0]
	}
	return ""
}

// LinePrefix returns the two-character line code ("R5a" → "R5").
func (r *Report) LinePrefix() string {
	if len(r.Line) < 2 {
		return r.Line
	}
	return r.Line[:2]
}

// featureCollection mirrors the tracker's GeoJSON payload.
type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	Properties properties `json:"properties"`
	Geometry   geometry   `json:"geometry"`
}

type geometry struct {
	Coordinates []float64 `json:"coordinates"` // lon, lat
}

type properties struct {
	ID          string        `json:"id"`
	Line        string        `json:"lin"`
	Direction   string        `json:"dir"`
	StationedAt string        `json:"estacionat_a"`
	Upcoming    upcomingStops `json:"properes_parades"`
	UnitType    string        `json:"tipus_unitat"`
	OnTime      *bool         `json:"en_hora"`
}

// upcomingStops handles both encodings of properes_parades: the current
// array of {"parada": name} records and the legacy semicolon-delimited
// pseudo-JSON string. Malformed input decodes to an empty list rather
// than failing the report.
type upcomingStops []string

func (u *upcomingStops) UnmarshalJSON(data []byte) error {
	*u = nil

	var records []struct {
		Parada string `json:"parada"`
	}
	if err := json.Unmarshal(data, &records); err == nil {
		for _, r := range records {
			*u = append(*u, r.Parada)
		}
		return nil
	}

	// Legacy form: a string of records separated by semicolons.
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	wrapped := "[" + strings.ReplaceAll(s, ";", ",") + "]"
	if err := json.Unmarshal([]byte(wrapped), &records); err != nil {
		return nil
	}
	for _, r := range records {
		*u = append(*u, r.Parada)
	}
	return nil
}

func (f *feature) toReport() Report {
	r := Report{
		VehicleID:   f.Properties.ID,
		Line:        f.Properties.Line,
		Direction:   f.Properties.Direction,
		StationedAt: f.Properties.StationedAt,
		Upcoming:    f.Properties.Upcoming,
		UnitType:    f.Properties.UnitType,
		OnTime:      f.Properties.OnTime,
	}
	if len(f.Geometry.Coordinates) >= 2 {
		r.Lon = f.Geometry.Coordinates[0]
		r.Lat = f.Geometry.Coordinates[1]
	}
	return r
}
