package simd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/natsim/internal/export"
	"github.com/GoSim-25-26J-441/natsim/pkg/config"
	"github.com/GoSim-25-26J-441/natsim/pkg/logger"
	"github.com/GoSim-25-26J-441/natsim/pkg/models"
)

type HTTPServer struct {
	mux      *http.ServeMux
	store    *RunStore
	Executor *RunExecutor
}

func NewHTTPServer(store *RunStore, executor *RunExecutor) *HTTPServer {
	s := &HTTPServer{
		mux:      http.NewServeMux(),
		store:    store,
		Executor: executor,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/runs", s.handleRuns)
	s.mux.HandleFunc("/v1/runs/", s.handleRunByID)
	if executor != nil && executor.Recorder() != nil {
		s.mux.Handle("/metrics", executor.Recorder().Handler())
	}

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleRuns handles /v1/runs endpoint
func (s *HTTPServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateRun(w, r)
	case http.MethodGet:
		s.handleListRuns(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleRunByID handles /v1/runs/{id} and related endpoints
func (s *HTTPServer) handleRunByID(w http.ResponseWriter, r *http.Request) {
	// Parse path: /v1/runs/{id}, /v1/runs/{id}:start, /v1/runs/{id}/summaries, ...
	path := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	type route struct {
		suffix  string
		method  string
		handler func(http.ResponseWriter, *http.Request, string)
	}
	routes := []route{
		{":start", http.MethodPost, s.handleStartRun},
		{":stop", http.MethodPost, s.handleStopRun},
		{"/summaries", http.MethodGet, s.handleGetSummaries},
		{"/export", http.MethodGet, s.handleExportRun},
		{"/stream", http.MethodGet, s.handleRunStream},
	}
	for _, rt := range routes {
		if !strings.HasSuffix(path, rt.suffix) {
			continue
		}
		if r.Method != rt.method {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		rt.handler(w, r, strings.TrimSuffix(path, rt.suffix))
		return
	}

	// Otherwise it's GET /v1/runs/{id}
	if r.Method == http.MethodGet {
		s.handleGetRun(w, r, path)
	} else {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleCreateRun handles POST /v1/runs
func (s *HTTPServer) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.Input == nil {
		s.writeError(w, http.StatusBadRequest, "input is required")
		return
	}

	rec, err := s.store.Create(req.RunID, *req.Input)
	if err != nil {
		s.writeError(w, httpStatus(err), err.Error())
		return
	}

	logger.Info("run created (HTTP)", "run_id", rec.Run.ID)
	s.writeJSON(w, http.StatusCreated, runResponse{Run: rec.Run})
}

// handleListRuns handles GET /v1/runs with pagination and filtering
func (s *HTTPServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	var req listRunsRequest
	q := r.URL.Query()
	if limitStr := q.Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			req.Limit = parsed
		}
	}
	if offsetStr := q.Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			req.Offset = parsed
		}
	}
	if statusStr := q.Get("status"); statusStr != "" {
		st, ok := parseRunStatus(statusStr)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "unknown status: "+statusStr)
			return
		}
		req.Status = st
	}

	s.writeJSON(w, http.StatusOK, buildListResponse(s.store, req))
}

// parseRunStatus accepts a status name in any case
func parseRunStatus(statusStr string) (models.RunStatus, bool) {
	st := models.RunStatus(strings.ToLower(statusStr))
	switch st {
	case models.RunStatusPending,
		models.RunStatusRunning,
		models.RunStatusCompleted,
		models.RunStatusFailed,
		models.RunStatusCancelled:
		return st, true
	}
	return "", false
}

// handleGetRun handles GET /v1/runs/{id}
func (s *HTTPServer) handleGetRun(w http.ResponseWriter, _ *http.Request, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	s.writeJSON(w, http.StatusOK, runResponse{Run: rec.Run})
}

// handleStartRun handles POST /v1/runs/{id}:start
func (s *HTTPServer) handleStartRun(w http.ResponseWriter, _ *http.Request, runID string) {
	updated, err := s.Executor.Start(runID)
	if err != nil {
		s.writeError(w, httpStatus(err), err.Error())
		return
	}

	logger.Info("run started (HTTP)", "run_id", runID)
	s.writeJSON(w, http.StatusOK, runResponse{Run: updated.Run})
}

// handleStopRun handles POST /v1/runs/{id}:stop
func (s *HTTPServer) handleStopRun(w http.ResponseWriter, _ *http.Request, runID string) {
	updated, err := s.Executor.Stop(runID)
	if err != nil {
		s.writeError(w, httpStatus(err), err.Error())
		return
	}

	logger.Info("run cancelled (HTTP)", "run_id", runID)
	s.writeJSON(w, http.StatusOK, runResponse{Run: updated.Run})
}

// handleGetSummaries handles GET /v1/runs/{id}/summaries
func (s *HTTPServer) handleGetSummaries(w http.ResponseWriter, _ *http.Request, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	summaries := rec.Summaries
	if summaries == nil {
		summaries = []models.ScenarioSummary{}
	}
	s.writeJSON(w, http.StatusOK, summariesResponse{
		RunID:     rec.Run.ID,
		Status:    rec.Run.Status,
		Summaries: summaries,
	})
}

// handleExportRun handles GET /v1/runs/{id}/export as CSV
func (s *HTTPServer) handleExportRun(w http.ResponseWriter, _ *http.Request, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if len(rec.Summaries) == 0 {
		s.writeError(w, http.StatusPreconditionFailed, "no scenario summaries available")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+runID+`.csv"`)
	if err := export.WriteCSV(w, rec.Summaries); err != nil {
		logger.Error("failed to export run", "run_id", runID, "error", err)
	}
}

// handleRunStream handles GET /v1/runs/{id}/stream (SSE)
func (s *HTTPServer) handleRunStream(w http.ResponseWriter, r *http.Request, runID string) {
	if _, ok := s.store.Get(runID); !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	interval := defaultWatchInterval
	if intervalStr := r.URL.Query().Get("interval_ms"); intervalStr != "" {
		if intervalMs, err := strconv.ParseInt(intervalStr, 10, 64); err == nil && intervalMs > 0 {
			interval = time.Duration(intervalMs) * time.Millisecond
		}
	}

	flusher, _ := w.(http.Flusher)
	err := s.store.Watch(r.Context(), runID, interval, func(ev RunEvent) error {
		if err := s.sendSSEEvent(w, ev.Type, ev); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("run stream ended", "run_id", runID, "error", err)
	}
}

// sendSSEEvent sends a Server-Sent Event
func (s *HTTPServer) sendSSEEvent(w http.ResponseWriter, eventType string, data any) error {
	// Format: event: <type>\ndata: <json>\n\n
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("event: " + eventType + "\n")); err != nil {
		return err
	}
	_, err = w.Write([]byte("data: " + string(jsonData) + "\n\n"))
	return err
}

// httpStatus maps daemon errors onto HTTP status codes
func httpStatus(err error) int {
	var cfgErr *config.ConfigurationError
	switch {
	case errors.As(err, &cfgErr),
		errors.Is(err, ErrInvalidRunID),
		errors.Is(err, ErrRunIDMissing):
		return http.StatusBadRequest
	case errors.Is(err, ErrRunExists),
		errors.Is(err, ErrRunTerminal):
		return http.StatusConflict
	case errors.Is(err, ErrRunNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// Helper functions

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}
