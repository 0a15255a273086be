package repositories

import "errors"

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("repository: not found")

	// ErrVersionConflict is returned by conditional updates when the stored
	// version differs from the one the caller read.
	ErrVersionConflict = errors.New("repository: version conflict")
)
