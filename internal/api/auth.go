package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/home-sentry/core/internal/auth"
)

// loginRequest is the POST /auth/login request body.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin exchanges a credential pair for a JWT access token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	token, err := s.auth.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeUnauthorized(w, "Invalid credentials")
			return
		}
		writeInternalError(w, "login failed")
		return
	}

	writeJSON(w, http.StatusCreated, token)
}
