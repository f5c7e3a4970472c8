package server

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"membership-backup/internal/backup"
	"membership-backup/internal/logging"
)

// Server exposes the backup engine to operators over HTTP
type Server struct {
	runner   *backup.Runner
	restorer *backup.Restorer
	markers  *backup.MarkerStore
	logger   *logging.Logger
	http     *http.Server
}

// New creates the operator API server listening on addr
func New(addr string, runner *backup.Runner, restorer *backup.Restorer,
	markers *backup.MarkerStore, logger *logging.Logger) *Server {

	s := &Server{
		runner:   runner,
		restorer: restorer,
		markers:  markers,
		logger:   logger,
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api/backups").Subrouter()
	api.HandleFunc("/trigger", s.handleTrigger).Methods(http.MethodPost)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/download/{name}", s.handleDownload).Methods(http.MethodGet)
	api.HandleFunc("/restore", s.handleRestore).Methods(http.MethodPost)
	api.HandleFunc("/dashboard-summary", s.handleDashboardSummary).Methods(http.MethodGet)
	r.Use(s.logRequests)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Minute,
	}
	return s
}

// ListenAndServe starts serving and blocks until shutdown
func (s *Server) ListenAndServe() error {
	s.logger.Infof("Operator API listening on %s", s.http.Addr)
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler returns the HTTP handler, used by tests
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

type triggerRequest struct {
	Type string `json:"type"`
}

type restoreRequest struct {
	Artifact string `json:"artifact"`
}

// handleTrigger starts a backup run. Returns 202 with the new job id, or
// 409 with the running job's id when a run is already in flight.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	runType := backup.RunType(req.Type)
	if !runType.Valid() {
		writeError(w, http.StatusBadRequest, "type must be full, differential or incremental")
		return
	}

	jobID, err := s.runner.Trigger(runType)
	if err != nil {
		if backup.IsConflict(err) {
			writeJSON(w, http.StatusConflict, map[string]string{
				"error":  "a backup is already in progress",
				"job_id": jobID,
			})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"type":   string(runType),
	})
}

// handleStatus reports the current or most recent job
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	job := s.runner.Registry().Snapshot()

	resp := map[string]any{
		"job": job,
	}
	if job.Status == backup.JobStatusRunning {
		resp["elapsed_seconds"] = int(time.Since(job.StartedAt).Seconds())
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHistory lists recent runs, newest first
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	entries, err := s.runner.Ledger().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []backup.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

// handleDownload streams a stored artifact to the caller
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	path, err := s.runner.Store().Resolve(name)
	if err != nil {
		if backup.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "artifact not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename="+filepath.Base(path))
	http.ServeFile(w, r, path)
}

// handleRestore replays a stored statement log. The request blocks until
// the restore finishes; restores share the single job slot with backups.
func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Artifact == "" {
		writeError(w, http.StatusBadRequest, "artifact is required")
		return
	}

	err := s.restorer.Restore(r.Context(), req.Artifact)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{
			"status":   "restored",
			"artifact": req.Artifact,
		})
	case backup.IsNotFound(err):
		writeError(w, http.StatusNotFound, "artifact not found")
	case backup.IsConflict(err):
		writeError(w, http.StatusConflict, "a backup is in progress; retry when it completes")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// handleDashboardSummary aggregates the state a dashboard renders: the job
// slot, the latest run, total recorded runs and both watermarks.
func (s *Server) handleDashboardSummary(w http.ResponseWriter, r *http.Request) {
	job := s.runner.Registry().Snapshot()

	entries, err := s.runner.Ledger().List(0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	summary := map[string]any{
		"status":        job.Status,
		"total_backups": len(entries),
	}
	if len(entries) > 0 {
		summary["last_backup"] = entries[0]
	}
	if ts, found, err := s.markers.Read(backup.MarkerLastFull); err == nil && found {
		summary["last_full_backup"] = ts.Format(time.RFC3339)
	}
	if ts, found, err := s.markers.Read(backup.MarkerLastAny); err == nil && found {
		summary["last_backup_any"] = ts.Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, summary)
}

// logRequests is the access log middleware
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Debug("Request handled")
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
