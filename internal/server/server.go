package server

import (
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/fgcagents/geomatching/internal/config"
	"github.com/fgcagents/geomatching/internal/handler"
	"github.com/fgcagents/geomatching/internal/match"
	"github.com/fgcagents/geomatching/internal/poller"
	"github.com/fgcagents/geomatching/internal/storage"
	"github.com/fgcagents/geomatching/web"
)

// Server is the HTTP server for the geomatching service.
type Server struct {
	mux    *http.ServeMux
	cfg    *config.Config
	logger *slog.Logger
}

// New creates a new Server with all routes registered.
func New(cfg *config.Config, profile *config.Profile, engine *match.Engine, db *storage.DB, poll *poller.Poller, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	h := handler.New(engine, db, poll, profile, logger)

	// Static files for the map page, served from the embedded FS.
	staticFS, _ := fs.Sub(web.StaticFiles, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	mux.Handle("GET /{$}", http.RedirectHandler("/static/index.html", http.StatusMovedPermanently))

	// Read side
	mux.HandleFunc("GET /api/state", h.State)
	mux.HandleFunc("GET /api/matches", h.Matches)
	mux.HandleFunc("GET /api/trains/{id}", h.TrainDetail)
	mux.HandleFunc("GET /api/health", h.Health)

	// Control side
	mux.HandleFunc("POST /api/schedule", h.UploadSchedule)
	mux.HandleFunc("POST /api/tags", h.UploadTags)
	mux.HandleFunc("POST /api/refresh", h.Refresh)
	mux.HandleFunc("POST /api/reset", h.Reset)

	// SSE
	mux.HandleFunc("GET /sse/state", h.SSEState)

	return &Server{mux: mux, cfg: cfg, logger: logger}
}

// Handler returns the fully wrapped handler chain, for tests.
func (s *Server) Handler() http.Handler {
	return withMiddleware(s.mux, s.logger)
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.logger.Info("server starting", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}
