// Package errors provides standardized error handling for the membership core.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Request-scoped: returned synchronously to the caller, no mutation performed.
	ErrCodeValidation         ErrorCode = "VALIDATION_ERROR"
	ErrCodePermissionDenied   ErrorCode = "PERMISSION_DENIED"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeInvariantViolation ErrorCode = "INVARIANT_VIOLATION"

	// Batch-scoped: aggregated into result summaries, never returned as the
	// operation error.
	ErrCodeDispatchFailed   ErrorCode = "DISPATCH_FAILED"
	ErrCodeTickRecordFailed ErrorCode = "TICK_RECORD_FAILED"

	// Infrastructure.
	ErrCodeStoreFailure ErrorCode = "STORE_FAILURE"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewValidationError creates a non-retryable input validation error.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidation,
		Message:   "Invalid input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPermissionDeniedError creates a non-retryable authorization error. The
// message is uniform regardless of whether the role or the capability token
// was missing.
func NewPermissionDeniedError() *StandardError {
	return &StandardError{
		Code:      ErrCodePermissionDenied,
		Message:   "You don't have permission to perform this action",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError creates a non-retryable missing-entity error.
func NewNotFoundError(entity, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", entity),
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvariantViolationError creates a non-retryable invariant error.
func NewInvariantViolationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvariantViolation,
		Message:   "Operation would violate an invariant",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDispatchFailedError creates a retryable per-recipient delivery error.
func NewDispatchFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDispatchFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTickRecordFailedError creates a per-record tick processing error. The
// next scheduled run re-evaluates the same time-threshold window, so the
// error is retryable by construction.
func NewTickRecordFailedError(recordID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTickRecordFailed,
		Message:   "Lifecycle tick record processing failed",
		Details:   fmt.Sprintf("record: %s, error: %s", recordID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreFailureError creates a retryable persistence error.
func NewStoreFailureError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreFailure,
		Message:   "Entity store operation failed",
		Details:   fmt.Sprintf("op: %s, error: %s", op, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// HasCode reports whether err is a StandardError carrying the given code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code == code
	}
	return false
}

// IsRequestScoped reports whether the error should surface to the caller
// as-is rather than be folded into a batch summary.
func IsRequestScoped(err error) bool {
	var stdErr *StandardError
	if !errors.As(err, &stdErr) {
		return false
	}
	switch stdErr.Code {
	case ErrCodeValidation, ErrCodePermissionDenied, ErrCodeNotFound, ErrCodeInvariantViolation:
		return true
	}
	return false
}
