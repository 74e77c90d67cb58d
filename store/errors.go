package store

import "errors"

// Error taxonomy for request lifecycle operations. Callers match with
// errors.Is; controllers translate these into HTTP responses. Anything
// not wrapping one of these is a transient store failure and is surfaced
// to the caller untouched.
var (
	// ErrValidation means a required field was missing or invalid.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound means the request (or donor/patient) id is unknown.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState means a transition was attempted from a terminal
	// or otherwise wrong status.
	ErrInvalidState = errors.New("invalid state")

	// ErrConflict means the donor already accepted this request.
	ErrConflict = errors.New("conflict")
)
