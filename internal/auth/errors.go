package auth

import "errors"

var (
	// ErrInvalidCredentials is returned for any failed login attempt.
	// The message is deliberately uniform so callers cannot distinguish
	// a bad username from a bad password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrTokenInvalid is returned when a token fails signature, expiry,
	// or claims validation.
	ErrTokenInvalid = errors.New("invalid token")
)
