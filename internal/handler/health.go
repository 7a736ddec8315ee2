package handler

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status         string     `json:"status"`
	ScheduleLoaded bool       `json:"scheduleLoaded"`
	Assigned       int        `json:"assigned"`
	LastCycle      *time.Time `json:"lastCycle,omitempty"`
}

// Health reports liveness plus a coarse picture of the matcher's state.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:         "ok",
		ScheduleLoaded: h.engine.HasSchedule(),
		Assigned:       h.engine.AssignedCount(),
	}
	if last := h.poll.LastCycle(); !last.IsZero() {
		resp.LastCycle = &last
	}
	h.writeJSON(w, http.StatusOK, resp)
}
