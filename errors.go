// Package nqgemm structured error types for better error handling
package nqgemm

import (
	"fmt"
)

// ErrorType represents categories of errors
type ErrorType int

const (
	// Invalid argument errors
	ErrTypeInvalidArg ErrorType = iota
	// Capability errors: the dispatch table cannot run the configuration
	ErrTypeCapability
	// Execution errors
	ErrTypeExecution
	// I/O errors from packed weight files
	ErrTypeIO
)

// EngineError represents a structured error with context
type EngineError struct {
	Type    ErrorType
	Op      string      // Operation that failed
	Message string      // Human-readable message
	Err     error       // Underlying error if any
	Context interface{} // Additional context
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("nqgemm %s error in %s: %s (caused by: %v)",
			e.Type.String(), e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("nqgemm %s error in %s: %s",
		e.Type.String(), e.Op, e.Message)
}

// Unwrap allows error chain inspection
func (e *EngineError) Unwrap() error {
	return e.Err
}

// String returns the error type as a string
func (t ErrorType) String() string {
	switch t {
	case ErrTypeInvalidArg:
		return "InvalidArgument"
	case ErrTypeCapability:
		return "Capability"
	case ErrTypeExecution:
		return "Execution"
	case ErrTypeIO:
		return "IO"
	default:
		return "Unknown"
	}
}

// Common error constructors

// NewInvalidArgError creates an invalid argument error
func NewInvalidArgError(op string, message string) error {
	return &EngineError{
		Type:    ErrTypeInvalidArg,
		Op:      op,
		Message: message,
	}
}

// NewCapabilityError creates a capability error
func NewCapabilityError(op string, message string) error {
	return &EngineError{
		Type:    ErrTypeCapability,
		Op:      op,
		Message: message,
	}
}

// NewExecutionError creates an execution error
func NewExecutionError(op string, message string, err error) error {
	return &EngineError{
		Type:    ErrTypeExecution,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NewIOError creates an I/O error
func NewIOError(op string, message string, err error) error {
	return &EngineError{
		Type:    ErrTypeIO,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// IsInvalidArgError checks if an error is an invalid argument error
func IsInvalidArgError(err error) bool {
	if e, ok := err.(*EngineError); ok {
		return e.Type == ErrTypeInvalidArg
	}
	return false
}

// IsCapabilityError checks if an error is a capability error
func IsCapabilityError(err error) bool {
	if e, ok := err.(*EngineError); ok {
		return e.Type == ErrTypeCapability
	}
	return false
}
