package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/home-sentry/core/internal/home"
)

// handleListHomes returns all homes.
func (s *Server) handleListHomes(w http.ResponseWriter, r *http.Request) {
	homes, err := s.homes.ListHomes(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list homes")
		return
	}
	writeJSON(w, http.StatusOK, homes)
}

// handleCreateHome creates a new home.
func (s *Server) handleCreateHome(w http.ResponseWriter, r *http.Request) {
	var input home.CreateHomeInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	created, err := s.homes.CreateHome(r.Context(), input)
	if err != nil {
		if errors.Is(err, home.ErrInvalidName) {
			writeBadRequest(w, err.Error())
			return
		}
		writeInternalError(w, "failed to create home")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleGetHome returns a single home by ID.
func (s *Server) handleGetHome(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	h, err := s.homes.GetHome(r.Context(), id)
	if err != nil {
		writeInternalError(w, "failed to get home")
		return
	}
	if h == nil {
		writeNotFound(w, "home not found")
		return
	}
	writeJSON(w, http.StatusOK, h)
}

// handleUpdateHome applies a partial update to a home.
func (s *Server) handleUpdateHome(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	var input home.UpdateHomeInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	updated, err := s.homes.UpdateHome(r.Context(), id, input)
	if err != nil {
		writeInternalError(w, "failed to update home")
		return
	}
	if updated == nil {
		writeNotFound(w, "home not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteHome deletes a home. The response reports deleted:true even
// when the home did not exist, matching the delete-then-audit semantics.
func (s *Server) handleDeleteHome(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	if err := s.homes.DeleteHome(r.Context(), id); err != nil {
		writeInternalError(w, "failed to delete home")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}
