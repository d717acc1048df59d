package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/retain/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the lifecycle error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrConflict), errors.Is(err, model.ErrRetryExhausted):
		status = http.StatusConflict
	case errors.Is(err, model.ErrInvariant):
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Owner     string `json:"owner"`
		Content   string `json:"content"`
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Owner == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "owner and content required"})
		return
	}

	m, err := s.engine.Ingest(r.Context(), req.Owner, req.Content, req.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "owner parameter required"})
		return
	}
	query := r.URL.Query().Get("q")
	sessionID := r.URL.Query().Get("session_id")

	limit := 10
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	memories, err := s.engine.Retrieve(r.Context(), owner, query, sessionID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"owner":    owner,
		"query":    query,
		"count":    len(memories),
		"memories": memories,
	})
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "memoryID")

	m, err := s.db.GetMemory(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleReinforce(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "memoryID")
	sessionID := sessionFromBody(r)

	m, err := s.engine.Reinforce(r.Context(), id, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleContradict(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "memoryID")
	sessionID := sessionFromBody(r)

	m, err := s.engine.Contradict(r.Context(), id, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "memoryID")

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	points, err := s.db.ScoreHistory(r.Context(), id, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"memory_id": id,
		"count":     len(points),
		"history":   points,
	})
}

func (s *Server) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Owner  string `json:"owner"`
		DryRun bool   `json:"dry_run"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
	}

	scope := req.Owner
	if scope == "" {
		scope = model.ScopeAll
	}

	report, err := s.engine.RunMaintenance(r.Context(), scope, req.DryRun)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "owner parameter required"})
		return
	}

	stats, err := s.engine.Stats(r.Context(), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleClearOwner(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "owner parameter required"})
		return
	}

	removed, err := s.engine.ClearOwner(r.Context(), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"owner":   owner,
		"removed": removed,
	})
}

func sessionFromBody(r *http.Request) string {
	if r.ContentLength == 0 {
		return ""
	}
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return ""
	}
	return req.SessionID
}
