package service

import "errors"

// Failure taxonomy for relationship operations. Local invariant violations
// (self-request, duplicate pending request, already-friends, removing a
// non-friend) are deliberately not errors: they are idempotent retries of an
// already-satisfied intent and come back as silent no-ops.
var (
	// ErrNotBound means no actor identity has been bound to the service.
	ErrNotBound = errors.New("no actor bound")

	// ErrRemoteUnavailable means the backing store could not be reached for
	// a read; the previous projection is retained unchanged.
	ErrRemoteUnavailable = errors.New("remote store unavailable")

	// ErrRemoteWriteFailed means the backing store rejected or failed a
	// write; local state is left untouched unless noted otherwise.
	ErrRemoteWriteFailed = errors.New("remote write failed")

	// ErrNotFound means the referenced friend request is absent from the
	// bound actor's projection.
	ErrNotFound = errors.New("friend request not found")

	// ErrAlreadyFinalized means the friend request already left the pending
	// state; terminal statuses never transition again.
	ErrAlreadyFinalized = errors.New("friend request already finalized")
)
