/*
errors.go - Centralized error types for the planning engine

ERROR CATEGORIES:
  1. Forecast errors - not enough history to fit the model
  2. Lookup errors - item or inventory record missing
  3. Validation errors - malformed policy or configuration input
  4. Workflow errors - illegal recommendation status transition

USAGE:
  Callers match with errors.Is on the sentinels, or errors.As on the
  structured types when they need the details:

    var ih *planning.InsufficientHistoryError
    if errors.As(err, &ih) {
        logger.Warn().Int("required", ih.Required).Int("provided", ih.Provided).Msg("not enough history")
    }
*/
package planning

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientHistory is returned when a series is too short to forecast.
	ErrInsufficientHistory = errors.New("insufficient demand history")

	// ErrNotFound is returned when a referenced item or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for malformed policies or configuration.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is returned when a status change is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientHistoryError reports how many periods were needed vs. supplied.
type InsufficientHistoryError struct {
	Required int
	Provided int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient demand history: required %d periods, provided %d",
		e.Required, e.Provided)
}

func (e *InsufficientHistoryError) Unwrap() error { return ErrInsufficientHistory }

// NotFoundError names the kind of record that is missing.
type NotFoundError struct {
	Kind string // "item", "inventory", "recommendation", ...
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move recommendation from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientHistory) ||
		errors.Is(err, ErrInvalidTransition)
}
