package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/yolohome/gateway/internal/user"
)

// userRequest is the body for create and update operations. The password
// and Adafruit key are write-only; responses never echo them.
type userRequest struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	AdafruitUsername string `json:"username_adafruit"`
	AdafruitKey      string `json:"key_adafruit"`
}

// handleListUsers returns all accounts.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		s.logger.Error("listing users failed", "error", err)
		writeInternalError(w, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// handleGetUser returns one account by number.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	no, ok := userNo(w, r)
	if !ok {
		return
	}

	u, err := s.users.GetByNo(r.Context(), no)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("fetching user failed", "no", no, "error", err)
		writeInternalError(w, "failed to fetch user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// handleCreateUser registers a new account.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeBadRequest(w, "name, email and password are required")
		return
	}

	u := &user.User{
		Name:             req.Name,
		Email:            req.Email,
		Password:         req.Password,
		AdafruitUsername: req.AdafruitUsername,
		AdafruitKey:      req.AdafruitKey,
	}
	if err := s.users.Create(r.Context(), u); err != nil {
		if errors.Is(err, user.ErrEmailExists) {
			writeConflict(w, "email already registered")
			return
		}
		s.logger.Error("creating user failed", "error", err)
		writeInternalError(w, "failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, u)
}

// handleUpdateUser replaces an account's details. Empty password or key
// fields keep the stored values.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	no, ok := userNo(w, r)
	if !ok {
		return
	}

	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	existing, err := s.users.GetByNo(r.Context(), no)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("fetching user failed", "no", no, "error", err)
		writeInternalError(w, "failed to fetch user")
		return
	}

	if req.Name != "" {
		existing.Name = req.Name
	}
	if req.Email != "" {
		existing.Email = req.Email
	}
	if req.Password != "" {
		existing.Password = req.Password
	}
	if req.AdafruitUsername != "" {
		existing.AdafruitUsername = req.AdafruitUsername
	}
	if req.AdafruitKey != "" {
		existing.AdafruitKey = req.AdafruitKey
	}

	if err := s.users.Update(r.Context(), existing); err != nil {
		s.logger.Error("updating user failed", "no", no, "error", err)
		writeInternalError(w, "failed to update user")
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteUser removes an account.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	no, ok := userNo(w, r)
	if !ok {
		return
	}

	if err := s.users.Delete(r.Context(), no); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("deleting user failed", "no", no, "error", err)
		writeInternalError(w, "failed to delete user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// userNo parses the {no} path parameter, writing a 400 on failure.
func userNo(w http.ResponseWriter, r *http.Request) (int, bool) {
	no, err := strconv.Atoi(chi.URLParam(r, "no"))
	if err != nil {
		writeBadRequest(w, "user number must be an integer")
		return 0, false
	}
	return no, true
}
