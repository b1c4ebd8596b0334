package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

type startSessionRequest struct {
	PracticeType string `json:"practiceType"`
}

type updateDurationRequest struct {
	DurationSeconds int64 `json:"durationSeconds"`
}

// handleStartSession opens a new practice session. The tracker itself never
// refuses a start; enforcing the daily lock is this layer's job, the same
// way the browser hook gated the UI.
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.PracticeType == "" {
		writeError(w, http.StatusBadRequest, "practiceType is required")
		return
	}

	if s.tracker.IsSessionLocked(req.PracticeType) {
		writeError(w, http.StatusConflict, "Daily limit reached for "+req.PracticeType)
		return
	}

	sessionID := s.tracker.StartSession(req.PracticeType)
	writeJSON(w, http.StatusCreated, map[string]any{
		"sessionId":    sessionID,
		"practiceType": req.PracticeType,
	})
}

// handleEndSession finalizes a session. Ending an unknown or already ended
// session succeeds quietly; callers cannot distinguish "already ended" from
// "never existed" and should not have to.
func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.tracker.EndSession(id)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Session ended"})
}

// handleUpdateDuration records live elapsed time on an open session.
func (s *Server) handleUpdateDuration(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req updateDurationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.DurationSeconds < 0 {
		writeError(w, http.StatusBadRequest, "durationSeconds must not be negative")
		return
	}

	s.tracker.UpdateSessionDuration(id, req.DurationSeconds)
	w.WriteHeader(http.StatusNoContent)
}

// handleTodayUsage returns today's bucket, optionally filtered by type. The
// body is JSON null when nothing has been tracked today, mirroring the
// tracker contract.
func (s *Server) handleTodayUsage(w http.ResponseWriter, r *http.Request) {
	practiceType := r.URL.Query().Get("practiceType")
	if practiceType != "" {
		writeJSON(w, http.StatusOK, s.tracker.GetTodayUsageByType(practiceType))
		return
	}
	writeJSON(w, http.StatusOK, s.tracker.GetTodayUsage())
}

// handlePracticeStats returns the per-type daily summaries in table order.
func (s *Server) handlePracticeStats(w http.ResponseWriter, r *http.Request) {
	stats := s.tracker.GetAllPracticeStats()
	writeJSON(w, http.StatusOK, map[string]any{
		"stats": stats,
		"count": len(stats),
	})
}

// handleLimits returns the configured practice limit table.
func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"limits": s.tracker.Limits(),
	})
}

// handleCleanup runs the retention purge on demand.
func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	s.tracker.CleanOldData(s.config.RetentionDays)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Retention cleanup complete"})
}
