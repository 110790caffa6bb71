package repository

import "errors"

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("repository: not found")

	// ErrConflict indicates a write was rejected because it would violate a
	// store-side invariant (duplicate pending request, non-pending status
	// update). The store is the final arbiter for these; callers decide
	// whether a conflict is an error or an already-satisfied intent.
	ErrConflict = errors.New("repository: conflict")
)
