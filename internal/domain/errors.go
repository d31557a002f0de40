package domain

import "errors"

// Sentinel errors shared across storage and service layers.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned when a status change violates the
	// request state machine.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrAlreadyResolved is returned when resolving a discrepancy that has
	// a resolution recorded.
	ErrAlreadyResolved = errors.New("discrepancy already resolved")
)
