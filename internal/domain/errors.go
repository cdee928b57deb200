package domain

import "errors"

var (
	// ErrValidation marks caller input that fails domain validation.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a lookup for an entity that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks an operation rejected by concurrent state.
	ErrConflict = errors.New("conflict")
	// ErrNoEligibleRecords is the expected terminal state of a dispatch
	// whose scope holds no unclaimed PAID payments. It is not exceptional:
	// a prior dispatch (or a concurrent one) already consumed the records.
	ErrNoEligibleRecords = errors.New("no eligible payment records")
)
