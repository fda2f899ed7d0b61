package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"atlas/internal/core/app"
	"atlas/internal/data/cache"
	"atlas/internal/fetch"
)

// Server exposes analysis runs as server-sent event streams plus a small
// cache management surface.
type Server struct {
	address string
	svc     *app.Service
	store   *cache.Store
	server  *http.Server
}

func New(address string, svc *app.Service, store *cache.Store) *Server {
	return &Server{address: address, svc: svc, store: store}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /analyze", s.handleAnalyze)
	mux.HandleFunc("GET /cache/stats", s.handleCacheStats)
	mux.HandleFunc("DELETE /cache", s.handleCacheClear)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:    s.address,
		Handler: s.Handler(),
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("analysis server listening", "addr", s.address)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return s.Stop()
	}
}

func (s *Server) Stop() error {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleAnalyze streams one analysis run. The connection stays open until
// the run's terminal event; a client disconnect stops event delivery.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	req := app.Request{
		Coords: fetch.Coords{
			Owner:  query.Get("owner"),
			Repo:   query.Get("repo"),
			Branch: query.Get("branch"),
		},
		IncludeAll: boolParam(query.Get("all")),
		SkipCache:  boolParam(query.Get("fresh")),
		UseArchive: boolParam(query.Get("archive")),
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	runID := uuid.New().String()
	slog.Info("analysis stream opened", "run", runID, "repo", req.Coords.Slug(), "branch", req.Coords.Branch)

	s.svc.Analyze(r.Context(), req, &sseEmitter{w: w, flusher: flusher})
	slog.Info("analysis stream closed", "run", runID)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Clear(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "up"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encode failed", "error", err)
	}
}

func boolParam(raw string) bool {
	v, err := strconv.ParseBool(raw)
	return err == nil && v
}
