package device

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/home-sentry/core/internal/audit"
	"github.com/home-sentry/core/internal/home"
	"github.com/home-sentry/core/internal/infrastructure/logging"
	"github.com/home-sentry/core/internal/patch"
)

const tableDevices = "devices"

// CreateDeviceInput holds the fields accepted when creating a device.
// RoomID may be nil for an unassigned device.
type CreateDeviceInput struct {
	RoomID    *int64  `json:"roomId"`
	Name      string  `json:"name"`
	Kind      string  `json:"kind"`
	Source    string  `json:"source"`
	SourceRef *string `json:"sourceRef"`
}

// UpdateDeviceInput holds a partial device update. An explicit null
// roomId detaches the device from its room; a value re-resolves the
// parent. An explicit null sourceRef clears the external reference.
type UpdateDeviceInput struct {
	RoomID    patch.Field[int64]  `json:"roomId"`
	Name      patch.Field[string] `json:"name"`
	Kind      patch.Field[string] `json:"kind"`
	Source    patch.Field[string] `json:"source"`
	SourceRef patch.Field[string] `json:"sourceRef"`
}

// Service implements device management with an audit trail.
type Service struct {
	repo   Repository
	rooms  home.Repository
	audit  *audit.Logger
	logger *logging.Logger
}

// NewService creates a device service. The room repository is used to
// resolve parent references.
func NewService(repo Repository, rooms home.Repository, auditLog *audit.Logger, logger *logging.Logger) *Service {
	return &Service{
		repo:   repo,
		rooms:  rooms,
		audit:  auditLog,
		logger: logger.With("component", "device"),
	}
}

// CreateDevice creates a device, resolving the room reference when one
// is given. A dangling roomId fails before anything is written.
func (s *Service) CreateDevice(ctx context.Context, input CreateDeviceInput) (*Device, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}

	var room *home.Room
	if input.RoomID != nil {
		var err error
		room, err = s.resolveRoom(ctx, *input.RoomID)
		if err != nil {
			return nil, err
		}
	}

	source := input.Source
	if source == "" {
		source = DefaultSource
	}

	d := &Device{
		RoomID:    input.RoomID,
		Name:      input.Name,
		Kind:      input.Kind,
		Source:    source,
		SourceRef: input.SourceRef,
	}
	if err := s.repo.CreateDevice(ctx, d); err != nil {
		return nil, err
	}
	d.Room = room

	if err := s.audit.Log(ctx, audit.Entry{
		TableName: tableDevices,
		Action:    audit.ActionInsert,
		RecordID:  d.ID,
		NewValue:  d,
	}); err != nil {
		return nil, err
	}

	s.logger.Info("device created", "device_id", d.ID, "kind", d.Kind)
	return d, nil
}

// ListDevices returns all devices, or the devices of one room when
// roomID is non-nil.
func (s *Service) ListDevices(ctx context.Context, roomID *int64) ([]Device, error) {
	if roomID != nil {
		return s.repo.ListDevicesByRoom(ctx, *roomID)
	}
	return s.repo.ListDevices(ctx)
}

// GetDevice returns a device by ID, or nil if it does not exist.
func (s *Service) GetDevice(ctx context.Context, id int64) (*Device, error) {
	d, err := s.repo.GetDevice(ctx, id)
	if errors.Is(err, ErrDeviceNotFound) {
		return nil, nil
	}
	return d, err
}

// UpdateDevice applies a partial update to a device. Returns nil
// without touching the audit trail when the device does not exist.
func (s *Service) UpdateDevice(ctx context.Context, id int64, input UpdateDeviceInput) (*Device, error) {
	d, err := s.repo.GetDevice(ctx, id)
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return nil, nil
		}
		return nil, err
	}

	old := *d

	if input.RoomID.IsSet() {
		if input.RoomID.IsNull() {
			d.RoomID = nil
			d.Room = nil
		} else {
			roomID := input.RoomID.MustGet()
			room, err := s.resolveRoom(ctx, roomID)
			if err != nil {
				return nil, err
			}
			d.RoomID = &roomID
			d.Room = room
		}
	}

	if name, ok := input.Name.Get(); ok {
		d.Name = name
	}
	if kind, ok := input.Kind.Get(); ok {
		d.Kind = kind
	}
	if source, ok := input.Source.Get(); ok {
		d.Source = source
	}
	if input.SourceRef.IsSet() {
		d.SourceRef = input.SourceRef.Ptr()
	}

	if err := s.repo.UpdateDevice(ctx, d); err != nil {
		return nil, err
	}

	if err := s.audit.Log(ctx, audit.Entry{
		TableName: tableDevices,
		Action:    audit.ActionUpdate,
		RecordID:  d.ID,
		OldValue:  old,
		NewValue:  d,
	}); err != nil {
		return nil, err
	}

	s.logger.Info("device updated", "device_id", d.ID)
	return d, nil
}

// DeleteDevice removes a device, recording the prior state when it
// existed. The delete succeeds regardless of prior existence.
func (s *Service) DeleteDevice(ctx context.Context, id int64) error {
	var old any
	if d, err := s.repo.GetDevice(ctx, id); err == nil {
		old = d
	} else if !errors.Is(err, ErrDeviceNotFound) {
		return err
	}

	if err := s.repo.DeleteDevice(ctx, id); err != nil {
		return err
	}

	if err := s.audit.Log(ctx, audit.Entry{
		TableName: tableDevices,
		Action:    audit.ActionDelete,
		RecordID:  id,
		OldValue:  old,
	}); err != nil {
		return err
	}

	s.logger.Info("device deleted", "device_id", id)
	return nil
}

// ListSignals returns the signals owned by a device.
func (s *Service) ListSignals(ctx context.Context, deviceID int64) ([]Signal, error) {
	return s.repo.ListSignalsByDevice(ctx, deviceID)
}

// ListSignalStates returns the most recent recorded states for a signal.
func (s *Service) ListSignalStates(ctx context.Context, signalID int64, limit int) ([]SignalState, error) {
	return s.repo.ListSignalStates(ctx, signalID, limit)
}

// resolveRoom loads a parent room, translating a missing row into a
// descriptive typed error.
func (s *Service) resolveRoom(ctx context.Context, roomID int64) (*home.Room, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, home.ErrRoomNotFound) {
			return nil, fmt.Errorf("room %d: %w", roomID, home.ErrRoomNotFound)
		}
		return nil, err
	}
	return room, nil
}
