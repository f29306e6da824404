package matching

import "errors"

var (
	// ErrNotFound covers an absent profile or match record, and a requester
	// who isn't allowed to see the record.
	ErrNotFound = errors.New("not found")

	// ErrSelfAction is returned when a user acts on themselves.
	ErrSelfAction = errors.New("cannot act on yourself")

	// ErrDuplicateLike is returned when a user likes the same pair twice.
	ErrDuplicateLike = errors.New("already liked")

	// ErrInvalidTransition is returned when the record's status doesn't allow the action.
	ErrInvalidTransition = errors.New("invalid state transition")
)
