// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")
	ErrAlreadyGraded   = errors.New("already graded")

	// Backend errors
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrViewMissing        = errors.New("relational view missing")

	// Batch errors
	ErrPartialBatchFailure = errors.New("partial batch failure")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "take", "leaderboard", "achievement"
	Op      string // Operation that failed, e.g., "Resolve", "Award"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Take domain errors
var (
	ErrTakeNotFound   = NewDomainError("take", "Find", ErrNotFound, "take not found")
	ErrInvalidSubject = NewDomainError("take", "Validate", ErrInvalidID, "invalid subject key")
	ErrInvalidPropID  = NewDomainError("take", "Validate", ErrInvalidID, "invalid prop ID")
	ErrInvalidResult  = NewDomainError("take", "Validate", ErrInvalidInput, "invalid take result")
	ErrInvalidStatus  = NewDomainError("take", "Validate", ErrInvalidInput, "invalid take status")
	ErrPointsFrozen   = NewDomainError("take", "Update", ErrInvalidState, "points mutate only during grading")
)

// Leaderboard domain errors
var (
	ErrInvalidScope  = NewDomainError("leaderboard", "Validate", ErrInvalidInput, "invalid scope descriptor")
	ErrInvalidWindow = NewDomainError("leaderboard", "Validate", ErrInvalidInput, "invalid time window")
)

// Achievement domain errors
var (
	ErrAchievementExists     = NewDomainError("achievement", "Award", ErrAlreadyExists, "achievement already awarded")
	ErrInvalidThreshold      = NewDomainError("achievement", "Validate", ErrValueOutOfRange, "invalid point threshold")
	ErrInvalidAchievementKey = NewDomainError("achievement", "Validate", ErrInvalidFormat, "invalid achievement key")
)

// Profile domain errors
var (
	ErrProfileNotFound = NewDomainError("profile", "Find", ErrNotFound, "profile not found")
	ErrInvalidPhone    = NewDomainError("profile", "Validate", ErrInvalidFormat, "invalid phone number")
)

// Grading errors
var (
	ErrScopeAlreadyGraded = NewDomainError("grading", "SetWinner", ErrAlreadyGraded, "winner reference already set")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsBackendUnavailable checks if the error came from the backing store.
func IsBackendUnavailable(err error) bool {
	return errors.Is(err, ErrBackendUnavailable) || errors.Is(err, ErrTimeout)
}

// IsViewMissing checks if the error is the "missing relational view" signature.
// This error is handled internally by the scope resolvers and must never
// reach a caller of the engine.
func IsViewMissing(err error) bool {
	return errors.Is(err, ErrViewMissing)
}
