package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/fgcagents/geomatching/internal/config"
	"github.com/fgcagents/geomatching/internal/match"
	"github.com/fgcagents/geomatching/internal/poller"
	"github.com/fgcagents/geomatching/internal/storage"
)

// Handler holds shared dependencies for all HTTP handlers.
type Handler struct {
	engine  *match.Engine
	db      *storage.DB
	poll    *poller.Poller
	profile *config.Profile
	logger  *slog.Logger
}

// New creates a Handler.
func New(engine *match.Engine, db *storage.DB, poll *poller.Poller, profile *config.Profile, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, db: db, poll: poll, profile: profile, logger: logger}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encoding response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
