package device

import "errors"

var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrSignalNotFound is returned when a signal ID or name does not exist.
	ErrSignalNotFound = errors.New("signal not found")

	// ErrInvalidName is returned when an entity name fails validation.
	ErrInvalidName = errors.New("invalid name")
)
