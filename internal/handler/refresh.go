package handler

import (
	"errors"
	"net/http"

	"github.com/fgcagents/geomatching/internal/poller"
)

type refreshResponse struct {
	Matches  int `json:"matches"`
	Assigned int `json:"assigned"`
	Purged   int `json:"purged"`
}

// Refresh runs a matching cycle immediately instead of waiting for the
// next tick. Returns 409 until a schedule has been loaded.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	cycle, err := h.poll.RunCycle(r.Context())
	switch {
	case errors.Is(err, poller.ErrNoSchedule):
		h.writeError(w, http.StatusConflict, "no schedule loaded; upload one via /api/schedule first")
		return
	case errors.Is(err, poller.ErrCycleInFlight):
		h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "cycle already running"})
		return
	case err != nil:
		h.logger.Error("manual refresh", "error", err)
		h.writeError(w, http.StatusInternalServerError, "refresh failed")
		return
	}

	h.writeJSON(w, http.StatusOK, refreshResponse{
		Matches:  len(cycle.Matches),
		Assigned: cycle.Assigned,
		Purged:   cycle.Purged,
	})
}

// Reset drops the in-memory matching state and the persisted schedule.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	h.engine.Reset()
	if err := h.db.ClearItineraries(r.Context()); err != nil {
		h.logger.Error("clearing persisted schedule", "error", err)
	}
	h.logger.Info("state reset")
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
