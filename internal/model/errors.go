package model

import "errors"

var (
	// ErrNotFound is returned when a session, question, test or student is missing.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned on uniqueness races and lost compare-and-set updates.
	ErrConflict = errors.New("conflict")
	// ErrInvalid is returned for malformed input or an operation illegal in the current phase.
	ErrInvalid = errors.New("invalid request")
	// ErrCannotAdvance is returned when the session has no next phase.
	ErrCannotAdvance = errors.New("cannot advance further")
	// ErrUnauthorized is returned when credentials are missing or wrong.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the caller does not own the resource.
	ErrForbidden = errors.New("forbidden")
)
