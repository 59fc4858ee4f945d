package engine

import (
	"errors"
	"fmt"
)

// ReducerError is a fault raised while a reducer handled an event.
//
// It is the only error ProcessEvent returns. The owning sequence, if any,
// is marked failed before the error reaches the caller.
type ReducerError struct {
	// Code identifies the error category.
	Code ReducerErrorCode

	// Reducer is the name of the failing reducer.
	Reducer string

	// EventType and SequenceID identify the event.
	EventType  string
	SequenceID string

	// Err is the underlying cause. For panics it carries the recovered value.
	Err error
}

// ReducerErrorCode categorizes reducer errors.
type ReducerErrorCode string

const (
	// ErrCodeReducerFailed indicates the reducer returned an error.
	ErrCodeReducerFailed ReducerErrorCode = "REDUCER_FAILED"

	// ErrCodeReducerPanic indicates the reducer panicked.
	ErrCodeReducerPanic ReducerErrorCode = "REDUCER_PANIC"
)

// Error implements the error interface.
func (e *ReducerError) Error() string {
	if e.SequenceID != "" {
		return fmt.Sprintf("%s: reducer %s on %s (sequence=%s): %v", e.Code, e.Reducer, e.EventType, e.SequenceID, e.Err)
	}
	return fmt.Sprintf("%s: reducer %s on %s: %v", e.Code, e.Reducer, e.EventType, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ReducerError) Unwrap() error {
	return e.Err
}

// IsReducerError returns true if err wraps a ReducerError.
func IsReducerError(err error) bool {
	var re *ReducerError
	return errors.As(err, &re)
}

// IsPanic returns true if err wraps a ReducerError raised by a panic.
func IsPanic(err error) bool {
	var re *ReducerError
	if errors.As(err, &re) {
		return re.Code == ErrCodeReducerPanic
	}
	return false
}

// BatchError reports the event that stopped a batch. Events before Index
// were processed; events after it were not attempted.
type BatchError struct {
	Index     int
	EventType string
	Err       error
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	return fmt.Sprintf("batch event %d (%s): %v", e.Index, e.EventType, e.Err)
}

// Unwrap returns the underlying cause.
func (e *BatchError) Unwrap() error {
	return e.Err
}
