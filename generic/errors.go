/*
errors.go - Centralized error types for the engine and its stores

PURPOSE:
  Every engine operation either returns the new state or fails with exactly
  one error kind. Callers branch on the kind with errors.Is / errors.As and
  show the user the current state again.

ERROR CATEGORIES:
  1. State errors   - InvalidStateError, AlreadyRatedError
  2. Lookup errors  - NotFoundError
  3. Input errors   - ValidationError
  4. Store errors   - ErrConcurrentModification, ErrDuplicateIdempotencyKey

USAGE:
  if errors.Is(err, generic.ErrInvalidState) {
      // re-fetch the agreement and render it
  }

SEE ALSO:
  - collection/engine.go: Produces the state and validation errors
  - store/sqlstore: Produces the store errors
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidState is returned when an operation targets an occurrence or
	// agreement that is not in the required state.
	ErrInvalidState = errors.New("invalid state")

	// ErrNotFound is returned when a referenced agreement or occurrence id
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyRated is returned when a rating direction is already filled.
	ErrAlreadyRated = errors.New("already rated")

	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrConcurrentModification is returned when optimistic locking detects
	// that the stored agreement moved since it was read.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrDuplicateIdempotencyKey is returned when a ledger transaction with
	// the same idempotency key already exists. Expected on retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidStateError names the subject, its current state and what the
// operation needed.
type InvalidStateError struct {
	Op       string // e.g. "register", "cancel"
	Subject  string // "occurrence" or "agreement"
	ID       string
	Current  string
	Required string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: %s %s is %s, requires %s", e.Op, e.Subject, e.ID, e.Current, e.Required)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// NotFoundError names what was looked up.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// AlreadyRatedError reports the occurrence and rating direction.
type AlreadyRatedError struct {
	OccurrenceID string
	Direction    string
}

func (e *AlreadyRatedError) Error() string {
	return fmt.Sprintf("occurrence %s already rated (%s)", e.OccurrenceID, e.Direction)
}

func (e *AlreadyRatedError) Unwrap() error { return ErrAlreadyRated }

// ValidationError reports one malformed field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid is shorthand for a *ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed after re-reading state.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflict returns true if the request was well-formed but the current
// state does not allow it.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrAlreadyRated) ||
		errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrDuplicateIdempotencyKey)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
