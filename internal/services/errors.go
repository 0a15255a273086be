package services

import (
	"errors"
	"fmt"

	"constructflow/internal/repositories"
)

// Workflow errors. Callers tell them apart with errors.Is:
// ErrNotFound and ErrInvalidTransition are data/programming errors,
// ErrConflict is retryable, ErrPersistence follows the store's own
// retry contract.
var (
	ErrNotFound          = errors.New("task not found")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrConflict          = errors.New("concurrent update conflict")
	ErrPersistence       = errors.New("task store failure")
	ErrInvalidInput      = errors.New("invalid input")
)

// PersistenceError carries the failing operation and the store error as-is.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrPersistence, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

func mapStoreError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	case errors.Is(err, repositories.ErrVersionConflict):
		return fmt.Errorf("%s: %w: %w", op, ErrConflict, err)
	}
	return &PersistenceError{Op: op, Err: err}
}

func invalidTransition(op, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w: %s", op, ErrInvalidTransition, fmt.Sprintf(format, args...))
}

// IsRetryable reports whether the caller may simply re-run the operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}
