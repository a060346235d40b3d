package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/yolohome/gateway/internal/audit"
	"github.com/yolohome/gateway/internal/voice"
)

// speechResponse reports what was heard and what was done about it.
type speechResponse struct {
	Success bool           `json:"success"`
	Text    string         `json:"text,omitempty"`
	Command *voice.Command `json:"command,omitempty"`
	Message string         `json:"message,omitempty"`
}

// handleSpeechToText transcribes uploaded audio and executes the
// recognized command against every device of the addressed kind.
//
// The audio arrives as a multipart "file" field or as the raw body.
func (s *Server) handleSpeechToText(w http.ResponseWriter, r *http.Request) {
	if s.transcriber == nil {
		writeError(w, http.StatusNotImplemented, "not_implemented", "speech recognition is not configured")
		return
	}

	audio, err := readAudio(r)
	if err != nil {
		writeBadRequest(w, "could not read audio upload")
		return
	}
	if len(audio) == 0 {
		writeBadRequest(w, "empty audio upload")
		return
	}

	text, err := s.transcriber.Transcribe(r.Context(), audio)
	if err != nil {
		s.logger.Error("transcription failed", "error", err)
		writeInternalError(w, "transcription failed")
		return
	}

	cmd, err := voice.ParseCommand(text)
	if err != nil {
		writeJSON(w, http.StatusOK, speechResponse{
			Success: false,
			Text:    text,
			Message: "no recognizable command",
		})
		return
	}

	executed := s.executeVoiceCommand(r, cmd)
	writeJSON(w, http.StatusOK, speechResponse{
		Success: executed,
		Text:    text,
		Command: &cmd,
	})
}

// executeVoiceCommand fans a command out to every device of the
// addressed kind. Returns true when at least one device accepted it.
func (s *Server) executeVoiceCommand(r *http.Request, cmd voice.Command) bool {
	snap := s.registry.Snapshot()
	executed := false

	switch cmd.Device {
	case voice.DeviceFan:
		for _, f := range snap.Fans {
			if _, err := s.registry.CommandFan(f.ID, cmd.Action); err != nil {
				s.logger.Warn("voice fan command failed", "device", f.ID, "error", err)
				continue
			}
			s.session.RecordActivity(r.Context(), "voice fan "+cmd.Action, audit.StatusSuccess, f.ID)
			executed = true
		}
	case voice.DeviceLED:
		for _, l := range snap.LEDs {
			if err := s.registry.CommandLED(l.ID, cmd.Action); err != nil {
				s.logger.Warn("voice led command failed", "device", l.ID, "error", err)
				continue
			}
			s.session.RecordActivity(r.Context(), "voice "+ledActivity(cmd.Action), audit.StatusSuccess, l.ID)
			executed = true
		}
	}

	return executed
}

// readAudio extracts the uploaded audio bytes.
func readAudio(r *http.Request) ([]byte, error) {
	file, _, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		return io.ReadAll(file)
	}
	if !errors.Is(err, http.ErrNotMultipart) && !errors.Is(err, http.ErrMissingFile) {
		return nil, err
	}
	return io.ReadAll(r.Body)
}
