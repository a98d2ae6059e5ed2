package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by repositories; services translate it.
	ErrNotFound      = errors.New("not found")
	ErrAuthRequired  = errors.New("login required to order")
	ErrStoreNotFound = errors.New("store not found")
	ErrOrderNotFound = errors.New("order not found")
	ErrDraftNotFound = errors.New("checkout draft not found")
	ErrMenuNotFound  = errors.New("menu item not found")
	ErrForbidden     = errors.New("forbidden")
	// ErrConflict is a unique-key violation, e.g. a second order for the same draft.
	ErrConflict      = errors.New("conflict")
)

// ValidationError is reported next to the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// PersistenceError wraps a datastore failure. The cause is logged, never shown to callers.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
