package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SSEState streams the live train state via Server-Sent Events. The
// client gets the current state immediately, then one "state" event per
// completed matching cycle.
func (h *Handler) SSEState(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	ctx := r.Context()
	cycles, cancel := h.poll.Subscribe()
	defer cancel()

	h.sendStateEvent(w, flusher, r)

	for {
		select {
		case <-cycles:
			h.sendStateEvent(w, flusher, r)
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) sendStateEvent(w http.ResponseWriter, flusher http.Flusher, r *http.Request) {
	payload, err := json.Marshal(h.buildState(r.Context(), time.Now()))
	if err != nil {
		h.logger.Error("encoding SSE state", "error", err)
		return
	}
	fmt.Fprintf(w, "event: state\ndata: %s\n\n", payload)
	flusher.Flush()
}
