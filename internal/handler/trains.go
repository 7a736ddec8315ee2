package handler

import (
	"net/http"
)

type stopView struct {
	Station string `json:"estacio"`
	Time    string `json:"hora"`
}

type trainDetail struct {
	Train     string            `json:"tren"`
	Line      string            `json:"linia"`
	Direction string            `json:"direccio"`
	Stops     []stopView        `json:"parades"`
	Metadata  map[string]string `json:"metadades,omitempty"`
}

// TrainDetail returns the full itinerary for one train number: its stops
// in service order plus any non-time annotations the schedule carried.
func (h *Handler) TrainDetail(w http.ResponseWriter, r *http.Request) {
	train := r.PathValue("id")
	it, ok := h.engine.ItineraryByTrain(train)
	if !ok {
		h.writeError(w, http.StatusNotFound, "unknown train "+train)
		return
	}

	detail := trainDetail{
		Train:     it.Train,
		Line:      it.Line,
		Direction: it.Direction,
		Stops:     []stopView{},
	}
	for _, s := range it.OrderedStops() {
		if !s.Valid {
			continue
		}
		detail.Stops = append(detail.Stops, stopView{Station: s.Station, Time: s.Time})
	}
	if md := it.Metadata(); len(md) > 0 {
		detail.Metadata = md
	}

	h.writeJSON(w, http.StatusOK, detail)
}
