package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/yolohome/gateway/internal/device"
	"github.com/yolohome/gateway/internal/session"
)

// connectRequest is the body of POST /init-adafruit-connection.
type connectRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// connectResponse reports a successful connect. Devices lists the feed
// IDs discovered per kind; clients address commands by these IDs.
// Warnings carry device kinds whose discovery failed without aborting
// the connect.
type connectResponse struct {
	Success  bool                `json:"success"`
	UserNo   int                 `json:"user_no"`
	Devices  map[string][]string `json:"devices"`
	Warnings []string            `json:"warnings,omitempty"`
}

// handleInitConnection authenticates a user and rebinds the gateway to
// their Adafruit IO account.
func (s *Server) handleInitConnection(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeBadRequest(w, "email and password are required")
		return
	}

	result, err := s.session.Connect(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrInvalidCredentials):
		writeUnauthorized(w, "invalid email or password")
		return
	case errors.Is(err, session.ErrMissingBrokerCredentials):
		writeBadRequest(w, "account has no adafruit credentials")
		return
	case errors.Is(err, device.ErrRebuildInProgress):
		writeConflict(w, "rebuild in progress")
		return
	default:
		s.logger.Error("connect failed", "error", err)
		writeInternalError(w, "connection failed")
		return
	}

	resp := connectResponse{
		Success: true,
		UserNo:  result.UserNo,
		Devices: map[string][]string{
			"led":    result.LEDIDs,
			"fan":    result.FanIDs,
			"sensor": result.SensorIDs,
		},
	}
	for kind := range result.KindErrors {
		resp.Warnings = append(resp.Warnings, string(kind)+" discovery failed")
	}

	writeJSON(w, http.StatusOK, resp)
}
