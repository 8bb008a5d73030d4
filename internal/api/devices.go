package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/home-sentry/core/internal/device"
	"github.com/home-sentry/core/internal/home"
)

// handleListDevices returns all devices, with optional roomId filter.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	roomID, ok := queryID(w, r, "roomId")
	if !ok {
		return
	}

	devices, err := s.devices.ListDevices(r.Context(), roomID)
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

// handleCreateDevice creates a new device, optionally assigned to a room.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var input device.CreateDeviceInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	created, err := s.devices.CreateDevice(r.Context(), input)
	if err != nil {
		if errors.Is(err, home.ErrRoomNotFound) || errors.Is(err, device.ErrInvalidName) {
			writeBadRequest(w, err.Error())
			return
		}
		writeInternalError(w, "failed to create device")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleGetDevice returns a single device by ID with its room attached.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	d, err := s.devices.GetDevice(r.Context(), id)
	if err != nil {
		writeInternalError(w, "failed to get device")
		return
	}
	if d == nil {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleUpdateDevice applies a partial update to a device. A null roomId
// detaches the device; a new roomId re-resolves the room.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	var input device.UpdateDeviceInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	updated, err := s.devices.UpdateDevice(r.Context(), id, input)
	if err != nil {
		if errors.Is(err, home.ErrRoomNotFound) {
			writeBadRequest(w, err.Error())
			return
		}
		writeInternalError(w, "failed to update device")
		return
	}
	if updated == nil {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteDevice deletes a device.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	if err := s.devices.DeleteDevice(r.Context(), id); err != nil {
		writeInternalError(w, "failed to delete device")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// handleListDeviceSignals returns the signals recorded for a device.
func (s *Server) handleListDeviceSignals(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	signals, err := s.devices.ListSignals(r.Context(), id)
	if err != nil {
		writeInternalError(w, "failed to list signals")
		return
	}
	writeJSON(w, http.StatusOK, signals)
}

// handleListSignalStates returns recent states for a signal, newest first.
func (s *Server) handleListSignalStates(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(w, "invalid limit parameter")
			return
		}
		limit = n
	}

	states, err := s.devices.ListSignalStates(r.Context(), id, limit)
	if err != nil {
		writeInternalError(w, "failed to list signal states")
		return
	}
	writeJSON(w, http.StatusOK, states)
}
