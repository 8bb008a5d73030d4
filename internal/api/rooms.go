package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/home-sentry/core/internal/home"
)

// handleListRooms returns all rooms, with optional homeId filter.
func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	homeID, ok := queryID(w, r, "homeId")
	if !ok {
		return
	}

	rooms, err := s.homes.ListRooms(r.Context(), homeID)
	if err != nil {
		writeInternalError(w, "failed to list rooms")
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

// handleCreateRoom creates a new room under an existing home.
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var input home.CreateRoomInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	created, err := s.homes.CreateRoom(r.Context(), input)
	if err != nil {
		if errors.Is(err, home.ErrHomeNotFound) || errors.Is(err, home.ErrInvalidName) {
			writeBadRequest(w, err.Error())
			return
		}
		writeInternalError(w, "failed to create room")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleGetRoom returns a single room by ID with its home attached.
func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	room, err := s.homes.GetRoom(r.Context(), id)
	if err != nil {
		writeInternalError(w, "failed to get room")
		return
	}
	if room == nil {
		writeNotFound(w, "room not found")
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// handleUpdateRoom applies a partial update to a room.
func (s *Server) handleUpdateRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	var input home.UpdateRoomInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	updated, err := s.homes.UpdateRoom(r.Context(), id, input)
	if err != nil {
		writeInternalError(w, "failed to update room")
		return
	}
	if updated == nil {
		writeNotFound(w, "room not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteRoom deletes a room.
func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	if err := s.homes.DeleteRoom(r.Context(), id); err != nil {
		writeInternalError(w, "failed to delete room")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}
