/*
errors.go - Centralized error types for the planner core

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Ledger errors - Record persistence failures
  2. Validation errors - Business rule violations
  3. Store errors - Lookup and concurrency failures
  4. Access errors - Capability role violations

USAGE:
  if errors.Is(err, generic.ErrDuplicateCompletion) {
      // another run already logged today
  }

SEE ALSO:
  - ledger.go: Uses these errors
  - routine/reconciler.go: Wraps these errors per job
  - api/handlers.go: Maps these errors to HTTP statuses
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
	// ErrDuplicateIdempotencyKey is returned when a record with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrDuplicateCompletion is returned when a completion marker for the
	// same job and day already exists.
	ErrDuplicateCompletion = errors.New("completion already logged for day")

	// ErrConcurrentModification is returned when optimistic locking detects a conflict.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrInvalidRecord is returned when a financial record violates its invariants.
	ErrInvalidRecord = errors.New("invalid financial record")

	// ErrInvalidInput is returned for malformed user-submitted entities.
	ErrInvalidInput = errors.New("invalid input")

	ErrJobNotFound   = errors.New("routine job not found")
	ErrHabitNotFound = errors.New("habit not found")
	ErrTaskNotFound  = errors.New("task not found")
	ErrGoalNotFound  = errors.New("goal not found")

	// ErrForbidden is returned when a caller lacks the capability for an
	// operation (e.g. a user trying to mutate system-only accrual counters).
	ErrForbidden = errors.New("operation not permitted for this role")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RecordError describes which field of a financial record is invalid.
type RecordError struct {
	Field  string
	Reason string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("invalid financial record: %s %s", e.Field, e.Reason)
}

func (e *RecordError) Unwrap() error {
	return ErrInvalidRecord
}

// ValidationError describes an invalid user-submitted field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry: another
// writer moved the row between read and write.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsConflict returns true if the write collided with existing state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrDuplicateCompletion) ||
		IsRetryable(err)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRecord) || errors.Is(err, ErrInvalidInput)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrJobNotFound) ||
		errors.Is(err, ErrHabitNotFound) ||
		errors.Is(err, ErrTaskNotFound) ||
		errors.Is(err, ErrGoalNotFound)
}
