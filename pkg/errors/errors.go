// Package errors provides the coded error taxonomy of the comparison core.
//
// Each failure in the per-pair pipeline carries a machine-readable Code so the
// orchestrator can fold it into an outcome status without string matching:
//
//   - EXTRACTION_FAILURE, MATCHING_FAILURE and CONSTRAINT_VIOLATION become
//     an alignment_failed outcome
//   - TIMEOUT becomes a timeout outcome
//   - everything else (INVALID_INPUT, INTERNAL_ERROR, ...) becomes an error outcome
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidInput, "page %d has zero size", idx)
//	if errors.Is(err, errors.ErrCodeInvalidInput) {
//	    // reject the pair
//	}
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for the comparison pipeline.
const (
	// Recoverable alignment failures
	ErrCodeExtractionFailure   Code = "EXTRACTION_FAILURE"
	ErrCodeMatchingFailure     Code = "MATCHING_FAILURE"
	ErrCodeConstraintViolation Code = "CONSTRAINT_VIOLATION"

	// Budget exhaustion
	ErrCodeTimeout  Code = "TIMEOUT"
	ErrCodeCanceled Code = "CANCELED"

	// Input and configuration errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsAlignmentFailure reports whether err is one of the recoverable failures
// that mean "could not compare" rather than "broken input".
func IsAlignmentFailure(err error) bool {
	switch GetCode(err) {
	case ErrCodeExtractionFailure, ErrCodeMatchingFailure, ErrCodeConstraintViolation:
		return true
	}
	return false
}
