package domain

import "errors"

var (
	// ErrNotFound is returned when an image or link does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("invalid input")
	// ErrConflict is returned when a unique constraint (image src) is violated.
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized is returned when the admin secret does not match.
	ErrUnauthorized = errors.New("unauthorized")
)
