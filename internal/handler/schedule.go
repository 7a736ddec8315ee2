package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/fgcagents/geomatching/internal/storage"
	"github.com/fgcagents/geomatching/internal/timetable"
)

const metaScheduleLoadedAt = "schedule_loaded_at"

type scheduleResponse struct {
	Loaded  int `json:"loaded"`
	Skipped int `json:"skipped"`
}

// UploadSchedule replaces the active timetable with the posted JSON array.
// The previous schedule stays in place unless the upload decodes to at
// least one usable itinerary.
func (h *Handler) UploadSchedule(w http.ResponseWriter, r *http.Request) {
	var raws []json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raws); err != nil {
		h.writeError(w, http.StatusBadRequest, "schedule must be a JSON array of itinerary records")
		return
	}

	var (
		its     []timetable.Itinerary
		records []storage.ItineraryRecord
		skipped int
	)
	for i, raw := range raws {
		var it timetable.Itinerary
		if err := json.Unmarshal(raw, &it); err != nil {
			h.logger.Warn("skipping itinerary record", "index", i, "error", err)
			skipped++
			continue
		}
		if err := it.Validate(); err != nil {
			h.logger.Warn("skipping itinerary record", "index", i, "train", it.Train, "error", err)
			skipped++
			continue
		}
		its = append(its, it)
		records = append(records, storage.ItineraryRecord{Train: it.Train, Record: string(raw)})
	}

	if len(its) == 0 {
		h.writeError(w, http.StatusBadRequest, "no usable itinerary records in upload")
		return
	}

	h.engine.LoadItineraries(its)

	ctx := r.Context()
	if err := h.db.ReplaceItineraries(ctx, records); err != nil {
		h.logger.Error("persisting schedule", "error", err)
	}
	if err := h.db.SetMetadata(ctx, metaScheduleLoadedAt, time.Now().Format(time.RFC3339)); err != nil {
		h.logger.Error("recording schedule load time", "error", err)
	}

	h.logger.Info("schedule replaced", "itineraries", len(its), "skipped", skipped)
	h.writeJSON(w, http.StatusOK, scheduleResponse{Loaded: len(its), Skipped: skipped})
}
