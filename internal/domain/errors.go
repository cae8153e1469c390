// Package domain defines core types and errors for the intake gateway.
package domain

import "fmt"

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// MalformedPayloadError indicates the intake body is not a single JSON value.
type MalformedPayloadError struct {
	Err error
}

func (e *MalformedPayloadError) Error() string { return "malformed payload: " + e.Err.Error() }

func (e *MalformedPayloadError) Unwrap() error { return e.Err }

// MalformedRowError indicates an element of the payload that is not a JSON object.
type MalformedRowError struct {
	Row  int
	Kind string // JSON kind found instead of an object
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("malformed row %d: expected object, got %s", e.Row, e.Kind)
}

// EmptyPayloadError indicates a payload that produced no columns.
type EmptyPayloadError struct{}

func (e *EmptyPayloadError) Error() string { return "empty payload: no columns to write" }

// TypeMismatchError indicates a value whose type differs from its column's type.
type TypeMismatchError struct {
	Column string
	Row    int
	Want   Kind
	Got    Kind
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch in column %q at row %d: want %s, got %s", e.Column, e.Row, e.Want, e.Got)
}

// ConnectionError indicates a storage connection could not be acquired.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string { return "acquire connection: " + e.Err.Error() }

func (e *ConnectionError) Unwrap() error { return e.Err }

// WriteError indicates the storage backend rejected a batch.
type WriteError struct {
	Collection string
	Err        error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write to %q: %v", e.Collection, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}
