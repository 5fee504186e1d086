// internal/types/errors.go
package types

import "errors"

// Store contract errors. Callers classify with errors.Is; stores wrap these
// with context via fmt.Errorf("...: %w", ...).
var (
	// ErrDuplicateName means a category with that name already exists for the owner.
	ErrDuplicateName = errors.New("duplicate category name")

	// ErrNotFound covers missing categories and references, including rows
	// owned by a different owner. Cross-owner lookups must not be
	// distinguishable from missing rows.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput means the input was rejected before touching storage,
	// e.g. an empty or oversized category name.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable signals a transient storage failure. Safe to retry.
	ErrUnavailable = errors.New("store unavailable")
)
