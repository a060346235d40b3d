package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yolohome/gateway/internal/audit"
	"github.com/yolohome/gateway/internal/device"
)

// commandResponse is the envelope for device command results. Validation
// failures and broker publish failures both come back as success=false
// with a 200 status; the client treats them as soft failures.
type commandResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Value   *int   `json:"value,omitempty"`
}

// handleListLEDs returns every LED device with its cached status.
func (s *Server) handleListLEDs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Snapshot().LEDs)
}

// handleListFans returns every fan device with its cached speed.
func (s *Server) handleListFans(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Snapshot().Fans)
}

// handleListSensors returns every sensor with its latest reading.
func (s *Server) handleListSensors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Snapshot().Sensors)
}

// handleCommandLED sets an LED to "0" or "1".
func (s *Server) handleCommandLED(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status := chi.URLParam(r, "status")

	err := s.registry.CommandLED(id, status)
	switch {
	case err == nil:
		s.session.RecordActivity(r.Context(), ledActivity(status), audit.StatusSuccess, id)
		writeJSON(w, http.StatusOK, commandResponse{Success: true, Status: status})
	case errors.Is(err, device.ErrDeviceNotFound):
		writeNotFound(w, "led device not found: "+id)
	case errors.Is(err, device.ErrInvalidStatus):
		writeJSON(w, http.StatusOK, commandResponse{Success: false, Status: "invalid status"})
	default:
		s.logger.Warn("led command failed", "device", id, "status", status, "error", err)
		s.session.RecordActivity(r.Context(), ledActivity(status), audit.StatusFailed, id)
		writeJSON(w, http.StatusOK, commandResponse{Success: false, Status: status})
	}
}

// handleCommandFan applies a fan action: a verb or an explicit speed.
func (s *Server) handleCommandFan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	action := chi.URLParam(r, "action")

	value, err := s.registry.CommandFan(id, action)
	switch {
	case err == nil:
		s.session.RecordActivity(r.Context(), "fan "+action, audit.StatusSuccess, id)
		writeJSON(w, http.StatusOK, commandResponse{Success: true, Status: action, Value: &value})
	case errors.Is(err, device.ErrDeviceNotFound):
		writeNotFound(w, "fan device not found: "+id)
	case errors.Is(err, device.ErrInvalidAction):
		writeJSON(w, http.StatusOK, commandResponse{Success: false, Status: "invalid action", Value: &value})
	default:
		s.logger.Warn("fan command failed", "device", id, "action", action, "error", err)
		s.session.RecordActivity(r.Context(), "fan "+action, audit.StatusFailed, id)
		writeJSON(w, http.StatusOK, commandResponse{Success: false, Status: action, Value: &value})
	}
}

// handleReadSensor returns the latest reading of one sensor.
func (s *Server) handleReadSensor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	reading, err := s.registry.SensorReading(id)
	if err != nil {
		writeNotFound(w, "sensor not found: "+id)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"id":          reading.ID,
		"description": reading.Description,
		"value":       reading.Value,
		"unit":        reading.Unit,
	})
}

func ledActivity(status string) string {
	if status == "1" {
		return "turn on led"
	}
	return "turn off led"
}
