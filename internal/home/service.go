package home

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/home-sentry/core/internal/audit"
	"github.com/home-sentry/core/internal/infrastructure/logging"
	"github.com/home-sentry/core/internal/patch"
)

// Audit table names for this package's entities.
const (
	tableHomes = "homes"
	tableRooms = "rooms"
)

// CreateHomeInput holds the fields accepted when creating a home.
type CreateHomeInput struct {
	Name     string  `json:"name"`
	Timezone *string `json:"timezone"`
}

// UpdateHomeInput holds a partial update. Absent fields are left
// unchanged; an explicit null clears the nullable timezone.
type UpdateHomeInput struct {
	Name     patch.Field[string] `json:"name"`
	Timezone patch.Field[string] `json:"timezone"`
}

// CreateRoomInput holds the fields accepted when creating a room.
type CreateRoomInput struct {
	HomeID int64   `json:"homeId"`
	Name   string  `json:"name"`
	Floor  *string `json:"floor"`
}

// UpdateRoomInput holds a partial room update. The parent home is
// fixed at creation and cannot be changed here.
type UpdateRoomInput struct {
	Name  patch.Field[string] `json:"name"`
	Floor patch.Field[string] `json:"floor"`
}

// Service implements home and room management with an audit trail.
//
// Audit writes are synchronous: if the trail cannot be written the
// mutation reports failure, even though the entity write itself is not
// rolled back.
type Service struct {
	repo   Repository
	audit  *audit.Logger
	logger *logging.Logger
}

// NewService creates a home service.
func NewService(repo Repository, auditLog *audit.Logger, logger *logging.Logger) *Service {
	return &Service{
		repo:   repo,
		audit:  auditLog,
		logger: logger.With("component", "home"),
	}
}

// CreateHome creates a home and records the creation in the audit trail.
func (s *Service) CreateHome(ctx context.Context, input CreateHomeInput) (*Home, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}

	h := &Home{
		Name:     input.Name,
		Timezone: input.Timezone,
	}
	if err := s.repo.CreateHome(ctx, h); err != nil {
		return nil, err
	}

	if err := s.audit.Log(ctx, audit.Entry{
		TableName: tableHomes,
		Action:    audit.ActionInsert,
		RecordID:  h.ID,
		NewValue:  h,
	}); err != nil {
		return nil, err
	}

	s.logger.Info("home created", "home_id", h.ID, "name", h.Name)
	return h, nil
}

// ListHomes returns all homes.
func (s *Service) ListHomes(ctx context.Context) ([]Home, error) {
	return s.repo.ListHomes(ctx)
}

// GetHome returns a home by ID, or nil if it does not exist.
func (s *Service) GetHome(ctx context.Context, id int64) (*Home, error) {
	h, err := s.repo.GetHome(ctx, id)
	if errors.Is(err, ErrHomeNotFound) {
		return nil, nil
	}
	return h, err
}

// UpdateHome applies a partial update to a home. Returns nil without
// touching the audit trail when the home does not exist.
func (s *Service) UpdateHome(ctx context.Context, id int64, input UpdateHomeInput) (*Home, error) {
	h, err := s.repo.GetHome(ctx, id)
	if err != nil {
		if errors.Is(err, ErrHomeNotFound) {
			return nil, nil
		}
		return nil, err
	}

	old := *h

	if name, ok := input.Name.Get(); ok {
		h.Name = name
	}
	if input.Timezone.IsSet() {
		h.Timezone = input.Timezone.Ptr()
	}

	if err := s.repo.UpdateHome(ctx, h); err != nil {
		return nil, err
	}

	if err := s.audit.Log(ctx, audit.Entry{
		TableName: tableHomes,
		Action:    audit.ActionUpdate,
		RecordID:  h.ID,
		OldValue:  old,
		NewValue:  h,
	}); err != nil {
		return nil, err
	}

	s.logger.Info("home updated", "home_id", h.ID)
	return h, nil
}

// DeleteHome removes a home. The delete always succeeds from the
// caller's perspective; the audit entry records whether any prior
// state existed.
func (s *Service) DeleteHome(ctx context.Context, id int64) error {
	var old any
	if h, err := s.repo.GetHome(ctx, id); err == nil {
		old = h
	} else if !errors.Is(err, ErrHomeNotFound) {
		return err
	}

	if err := s.repo.DeleteHome(ctx, id); err != nil {
		return err
	}

	if err := s.audit.Log(ctx, audit.Entry{
		TableName: tableHomes,
		Action:    audit.ActionDelete,
		RecordID:  id,
		OldValue:  old,
	}); err != nil {
		return err
	}

	s.logger.Info("home deleted", "home_id", id)
	return nil
}

// CreateRoom creates a room under an existing home. The parent must
// exist; a dangling homeId fails before anything is written.
func (s *Service) CreateRoom(ctx context.Context, input CreateRoomInput) (*Room, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}

	parent, err := s.repo.GetHome(ctx, input.HomeID)
	if err != nil {
		if errors.Is(err, ErrHomeNotFound) {
			return nil, fmt.Errorf("home %d: %w", input.HomeID, ErrHomeNotFound)
		}
		return nil, err
	}

	rm := &Room{
		HomeID: input.HomeID,
		Name:   input.Name,
		Floor:  input.Floor,
	}
	if err := s.repo.CreateRoom(ctx, rm); err != nil {
		return nil, err
	}
	rm.Home = parent

	if err := s.audit.Log(ctx, audit.Entry{
		TableName: tableRooms,
		Action:    audit.ActionInsert,
		RecordID:  rm.ID,
		NewValue:  rm,
	}); err != nil {
		return nil, err
	}

	s.logger.Info("room created", "room_id", rm.ID, "home_id", rm.HomeID)
	return rm, nil
}

// ListRooms returns all rooms, or the rooms of one home when homeID
// is non-nil.
func (s *Service) ListRooms(ctx context.Context, homeID *int64) ([]Room, error) {
	if homeID != nil {
		return s.repo.ListRoomsByHome(ctx, *homeID)
	}
	return s.repo.ListRooms(ctx)
}

// GetRoom returns a room by ID, or nil if it does not exist.
func (s *Service) GetRoom(ctx context.Context, id int64) (*Room, error) {
	rm, err := s.repo.GetRoom(ctx, id)
	if errors.Is(err, ErrRoomNotFound) {
		return nil, nil
	}
	return rm, err
}

// UpdateRoom applies a partial update to a room. Returns nil without
// touching the audit trail when the room does not exist.
func (s *Service) UpdateRoom(ctx context.Context, id int64, input UpdateRoomInput) (*Room, error) {
	rm, err := s.repo.GetRoom(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return nil, nil
		}
		return nil, err
	}

	old := *rm

	if name, ok := input.Name.Get(); ok {
		rm.Name = name
	}
	if input.Floor.IsSet() {
		rm.Floor = input.Floor.Ptr()
	}

	if err := s.repo.UpdateRoom(ctx, rm); err != nil {
		return nil, err
	}

	if err := s.audit.Log(ctx, audit.Entry{
		TableName: tableRooms,
		Action:    audit.ActionUpdate,
		RecordID:  rm.ID,
		OldValue:  old,
		NewValue:  rm,
	}); err != nil {
		return nil, err
	}

	s.logger.Info("room updated", "room_id", rm.ID)
	return rm, nil
}

// DeleteRoom removes a room, recording the prior state when it existed.
func (s *Service) DeleteRoom(ctx context.Context, id int64) error {
	var old any
	if rm, err := s.repo.GetRoom(ctx, id); err == nil {
		old = rm
	} else if !errors.Is(err, ErrRoomNotFound) {
		return err
	}

	if err := s.repo.DeleteRoom(ctx, id); err != nil {
		return err
	}

	if err := s.audit.Log(ctx, audit.Entry{
		TableName: tableRooms,
		Action:    audit.ActionDelete,
		RecordID:  id,
		OldValue:  old,
	}); err != nil {
		return err
	}

	s.logger.Info("room deleted", "room_id", id)
	return nil
}
