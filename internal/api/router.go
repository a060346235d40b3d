package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
// Route paths mirror what the mobile and web clients already call.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/health", s.handleHealth)

	// Session
	r.Post("/init-adafruit-connection", s.handleInitConnection)

	// Device reads and commands
	r.Get("/led-devices", s.handleListLEDs)
	r.Get("/fan-devices", s.handleListFans)
	r.Get("/sensor-devices", s.handleListSensors)
	r.Post("/led/{id}/{status}", s.handleCommandLED)
	r.Post("/fan/{id}/{action}", s.handleCommandFan)
	r.Get("/sensor/{id}", s.handleReadSensor)

	// Voice commands
	r.Post("/speech-to-text", s.handleSpeechToText)

	// Real-time status stream
	r.Get("/ws", s.handleWebSocket)

	// Accounts and activity history
	r.Route("/api/users", func(r chi.Router) {
		r.Get("/", s.handleListUsers)
		r.Post("/", s.handleCreateUser)
		r.Route("/{no}", func(r chi.Router) {
			r.Get("/", s.handleGetUser)
			r.Put("/", s.handleUpdateUser)
			r.Delete("/", s.handleDeleteUser)
		})
	})
	r.Route("/logs", func(r chi.Router) {
		r.Get("/", s.handleListLogs)
		r.Post("/", s.handleCreateLog)
		r.Get("/{id}", s.handleGetLog)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
