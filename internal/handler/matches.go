package handler

import (
	"net/http"
	"time"

	"github.com/fgcagents/geomatching/internal/match"
)

type matchesResponse struct {
	UpdatedAt time.Time     `json:"updatedAt"`
	Matches   []match.Match `json:"matches"`
}

// Matches returns the match reports produced by the last completed cycle.
func (h *Handler) Matches(w http.ResponseWriter, r *http.Request) {
	matches := h.engine.LastMatches()
	if matches == nil {
		matches = []match.Match{}
	}
	h.writeJSON(w, http.StatusOK, matchesResponse{
		UpdatedAt: h.poll.LastCycle(),
		Matches:   matches,
	})
}
