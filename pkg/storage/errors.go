package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when a thread does not exist or is owned by
	// someone else.
	ErrNotFound = errors.New("thread not found")

	// ErrModelNotAssigned is returned when a message is appended for a model
	// that is not one of the thread's selected models.
	ErrModelNotAssigned = errors.New("model not assigned to thread")
)
