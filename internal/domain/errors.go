package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrInvalidName      = errors.New("event name is required")
	ErrInvalidEventDate = errors.New("event date is required and must be a valid date/time")
	ErrInvalidUsername  = errors.New("username is required")
	ErrInvalidPassword  = errors.New("password is required and must be at most 72 bytes")
	ErrUsernameTaken    = errors.New("username already exists")
)
