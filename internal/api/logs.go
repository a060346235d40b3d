package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/yolohome/gateway/internal/audit"
)

// logRequest is the body for manually recorded activity entries.
type logRequest struct {
	UserNo     int    `json:"user_no"`
	Activity   string `json:"activity"`
	Status     string `json:"status"`
	DeviceName string `json:"device_name"`
}

// handleListLogs returns activity log entries, newest first. Optional
// query parameters: user_no, activity, skip, limit.
func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	filter := audit.Filter{
		Activity: r.URL.Query().Get("activity"),
	}

	if v := r.URL.Query().Get("user_no"); v != "" {
		no, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "user_no must be an integer")
			return
		}
		filter.UserNo = no
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		filter.Limit = limit
	}
	if v := r.URL.Query().Get("skip"); v != "" {
		skip, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "skip must be an integer")
			return
		}
		filter.Skip = skip
	}

	entries, err := s.audits.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing logs failed", "error", err)
		writeInternalError(w, "failed to list logs")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleCreateLog records one activity entry on behalf of a client.
func (s *Server) handleCreateLog(w http.ResponseWriter, r *http.Request) {
	var req logRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Activity == "" {
		writeBadRequest(w, "activity is required")
		return
	}
	if req.Status == "" {
		req.Status = audit.StatusSuccess
	}

	entry := audit.NewEntry(req.UserNo, req.Activity, req.Status, req.DeviceName)
	if err := s.audits.Record(r.Context(), entry); err != nil {
		s.logger.Error("recording log failed", "error", err)
		writeInternalError(w, "failed to record log")
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// handleGetLog returns one entry by its id.
func (s *Server) handleGetLog(w http.ResponseWriter, r *http.Request) {
	entry, err := s.audits.GetByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, audit.ErrNotFound) {
		writeNotFound(w, "log entry not found")
		return
	}
	if err != nil {
		s.logger.Error("getting log failed", "error", err)
		writeInternalError(w, "failed to get log")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
