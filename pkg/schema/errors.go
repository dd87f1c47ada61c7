package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeInvalidExpression = "INVALID_EXPRESSION"
	ErrCodeEvaluation        = "EVALUATION_ERROR"
	ErrCodeExecution         = "EXECUTION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeStore             = "STORE_ERROR"
)

// SolverError is the structured error type for all rootfinder operations.
type SolverError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Method  Method         `json:"method,omitempty"`
	Cause   error          `json:"-"`
}

func (e *SolverError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("[%s] method %s: %s", e.Code, e.Method, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *SolverError) Unwrap() error {
	return e.Cause
}

// NewError creates a new SolverError.
func NewError(code, message string) *SolverError {
	return &SolverError{Code: code, Message: message}
}

// NewErrorf creates a new SolverError with a formatted message.
func NewErrorf(code, format string, args ...any) *SolverError {
	return &SolverError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithMethod attaches the method the error relates to.
func (e *SolverError) WithMethod(m Method) *SolverError {
	e.Method = m
	return e
}

// WithCause attaches an underlying cause.
func (e *SolverError) WithCause(err error) *SolverError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *SolverError) WithDetails(details map[string]any) *SolverError {
	e.Details = details
	return e
}

// IsCode reports whether err (or anything it wraps) is a SolverError with the given code.
func IsCode(err error, code string) bool {
	var se *SolverError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}
