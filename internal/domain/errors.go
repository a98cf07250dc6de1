package domain

import (
	"errors"
	"fmt"
)

// NotFoundError signals that a referenced entity does not exist.
// Jobs fail immediately on it; retrying has no value.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// NewNotFound creates a NotFoundError for an entity/id pair
func NewNotFound(entity string, id int64) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// TransientUpstreamError signals an external fetch failure.
// The queue backend's attempts/backoff policy decides whether to retry.
type TransientUpstreamError struct {
	Op  string
	Err error
}

func (e *TransientUpstreamError) Error() string {
	return fmt.Sprintf("upstream %s failed: %v", e.Op, e.Err)
}

func (e *TransientUpstreamError) Unwrap() error { return e.Err }

// NewTransient wraps an upstream failure
func NewTransient(op string, err error) *TransientUpstreamError {
	return &TransientUpstreamError{Op: op, Err: err}
}

// DataUnavailableError signals a risk-assessment sub-fetch failure.
// The engine substitutes a neutral score and records a warning; the
// overall assessment never aborts on it.
type DataUnavailableError struct {
	Source string
	Err    error
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("data source %s unavailable: %v", e.Source, e.Err)
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }

// ConfigValidationError signals an invalid configuration update.
// Invalid configs are rejected, never silently coerced.
type ConfigValidationError struct {
	Msg string
}

func (e *ConfigValidationError) Error() string { return e.Msg }

// NewConfigValidation creates a ConfigValidationError with a formatted message
func NewConfigValidation(format string, args ...any) *ConfigValidationError {
	return &ConfigValidationError{Msg: fmt.Sprintf(format, args...)}
}
