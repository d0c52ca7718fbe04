package task

import "errors"

var (
	// ErrNotAuthenticated is returned when a store operation runs with no signed-in user.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrRemoteWriteFailed wraps a rejected add, update or delete.
	ErrRemoteWriteFailed = errors.New("remote write failed")

	// ErrRemoteReadFailed wraps a failed subscription or snapshot load.
	ErrRemoteReadFailed = errors.New("remote read failed")

	// ErrEmptyText is returned when task text is empty or whitespace-only.
	ErrEmptyText = errors.New("task text is empty")

	// ErrInvalidPatch is returned for a patch that would null a required field.
	ErrInvalidPatch = errors.New("invalid task update")

	// ErrNotFound is returned when a task is not present in the local mirror.
	ErrNotFound = errors.New("task not found")
)
