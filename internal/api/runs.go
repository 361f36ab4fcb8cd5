package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"lnskit/internal/store"
)

// CreateRunHandler handles POST /v1/runs. The run executes in the
// background; the response carries the queued run.
func (s *Server) CreateRunHandler(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow() {
		w.Header().Set("Retry-After", "1")
		writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "run submission rate exceeded", r.URL.Path)
		return
	}
	var req RunRequest
	if err := decodeJSON(w, r, s.cfg.MaxBodyBytes, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	inst, err := validateRunRequest(&req)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid instance", err.Error(), r.URL.Path)
		return
	}
	params, restarts, err := req.Params.apply(s.solver.Params(), s.solver.Restarts)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid parameters", err.Error(), r.URL.Path)
		return
	}
	var raw json.RawMessage
	if req.Params != nil {
		if raw, err = json.Marshal(req.Params); err != nil {
			writeProblem(w, http.StatusInternalServerError, "Encode parameters failed", err.Error(), r.URL.Path)
			return
		}
	}
	run, err := s.Store.CreateRun(r.Context(), inst.Name, raw)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Create run failed", err.Error(), r.URL.Path)
		return
	}
	s.runner.Submit(run.ID, inst, params, restarts)
	w.Header().Set("Location", "/v1/runs/"+run.ID)
	writeJSON(w, http.StatusAccepted, run)
}

// ListRunsHandler handles GET /v1/runs?status=&cursor=&limit=
func (s *Server) ListRunsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be a non-negative integer", r.URL.Path)
			return
		}
		limit = n
	}
	status := store.RunStatus(q.Get("status"))
	switch status {
	case "", store.StatusQueued, store.StatusRunning, store.StatusSucceeded, store.StatusFailed, store.StatusCancelled:
	default:
		writeProblem(w, http.StatusBadRequest, "Invalid status", string(status), r.URL.Path)
		return
	}
	items, next, err := s.Store.ListRuns(r.Context(), status, q.Get("cursor"), limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List runs failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// GetRunHandler handles GET /v1/runs/{id}
func (s *Server) GetRunHandler(w http.ResponseWriter, r *http.Request) {
	run, err := s.Store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeProblem(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// CancelRunHandler handles DELETE /v1/runs/{id}
func (s *Server) CancelRunHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.Store.GetRun(r.Context(), id)
	if err != nil {
		s.storeProblem(w, r, err)
		return
	}
	if run.Status.Terminal() || !s.runner.Cancel(id) {
		writeProblem(w, http.StatusConflict, "Run not active", "run is "+string(run.Status), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "cancelling"})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) storeProblem(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Run not found", "", r.URL.Path)
		return
	}
	writeProblem(w, http.StatusInternalServerError, "Store error", err.Error(), r.URL.Path)
}
