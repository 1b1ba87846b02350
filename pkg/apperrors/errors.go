package apperrors

import "errors"

var (
	// ErrNotFound is returned for absent rows and for owner-scoped
	// operations against rows the caller does not own. Callers cannot
	// distinguish the two cases.
	ErrNotFound = errors.New("not found")

	// ErrEmailConflict is returned when an email is already bound to a
	// different external identity.
	ErrEmailConflict = errors.New("email already in use by another account")

	// ErrInvalidTransition is returned for report lifecycle moves that are
	// not permitted from the current status.
	ErrInvalidTransition = errors.New("invalid report status transition")

	// ErrInvalidConfidence is returned when a confidence score falls
	// outside [0, 1].
	ErrInvalidConfidence = errors.New("confidence must be between 0 and 1")

	// ErrValidation is the base for request validation failures. Wrap it
	// with the field-specific message.
	ErrValidation = errors.New("validation failed")
)
