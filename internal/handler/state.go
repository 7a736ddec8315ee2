package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/fgcagents/geomatching/internal/match"
)

// TrainState is the live view of one tracked vehicle: the assignment
// joined with its itinerary, punctuality, and any color tag.
type TrainState struct {
	VehicleID    string  `json:"id"`
	Train        string  `json:"tren"`
	Line         string  `json:"linia"`
	Direction    string  `json:"direccio"`
	Lon          float64 `json:"lon"`
	Lat          float64 `json:"lat"`
	NextStation  string  `json:"properaParada,omitempty"`
	UnitType     string  `json:"tipusUnitat"`
	Scheduled    string  `json:"horaProgramada,omitempty"`
	DelayMinutes int     `json:"retardMinuts"`
	OnTime       bool    `json:"enHora"`
	Color        string  `json:"color,omitempty"`
	Reference    string  `json:"referencia,omitempty"`
}

// StateResponse is the payload of GET /api/state and the SSE stream.
type StateResponse struct {
	UpdatedAt time.Time    `json:"updatedAt"`
	Matched   int          `json:"matched"`
	Trains    []TrainState `json:"trains"`
}

// State returns the current assignment set with punctuality and tags.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.buildState(r.Context(), time.Now()))
}

func (h *Handler) buildState(ctx context.Context, now time.Time) StateResponse {
	tags, err := h.db.AllColorTags(ctx)
	if err != nil {
		h.logger.Error("loading color tags", "error", err)
	}

	assignments := h.engine.Assignments()
	trains := make([]TrainState, 0, len(assignments))
	for id, a := range assignments {
		ts := TrainState{
			VehicleID:   id,
			Train:       a.Train,
			Lon:         a.Lon,
			Lat:         a.Lat,
			NextStation: a.NextStation,
			UnitType:    a.UnitType,
			OnTime:      true,
		}
		if ts.UnitType == "" {
			ts.UnitType = match.UnknownUnitType
		}

		if it, ok := h.engine.ItineraryByTrain(a.Train); ok {
			ts.Line = it.Line
			ts.Direction = it.Direction
			ts.Scheduled = it.TimeAt(a.NextStation)
		}

		// A vehicle is "on time" when the feed says so, or when its
		// measured delay stays under the threshold.
		feedOnTime := a.OnTime != nil && *a.OnTime
		if p, ok := match.Classify(ts.Scheduled, now, h.profile.DelayThreshold); ok {
			ts.DelayMinutes = p.Minutes
			ts.OnTime = feedOnTime || !p.Delayed
		} else {
			ts.OnTime = feedOnTime || a.OnTime == nil
		}

		if tag, ok := tags[a.Train]; ok {
			ts.Color = tag.Color
			ts.Reference = tag.Reference
		}
		trains = append(trains, ts)
	}

	sort.Slice(trains, func(i, j int) bool { return trains[i].VehicleID < trains[j].VehicleID })

	return StateResponse{
		UpdatedAt: h.poll.LastCycle(),
		Matched:   len(trains),
		Trains:    trains,
	}
}
