package handler

import (
	"encoding/json"
	"net/http"

	"github.com/fgcagents/geomatching/internal/storage"
)

// UploadTags stores color tag records. Tags are keyed by train number;
// re-uploading a train's tag overwrites the previous one.
func (h *Handler) UploadTags(w http.ResponseWriter, r *http.Request) {
	var tags []storage.ColorTag
	if err := json.NewDecoder(r.Body).Decode(&tags); err != nil {
		h.writeError(w, http.StatusBadRequest, "tags must be a JSON array of {tren, color, reference} records")
		return
	}

	valid := tags[:0]
	for _, t := range tags {
		if t.Train == "" || t.Color == "" {
			continue
		}
		valid = append(valid, t)
	}
	if len(valid) == 0 {
		h.writeError(w, http.StatusBadRequest, "no usable tag records in upload")
		return
	}

	if err := h.db.UpsertColorTags(r.Context(), valid); err != nil {
		h.logger.Error("storing color tags", "error", err)
		h.writeError(w, http.StatusInternalServerError, "could not store tags")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int{"stored": len(valid)})
}
