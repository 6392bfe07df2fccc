package types

import "fmt"

// ErrorCode represents a unified error code across the framework.
type ErrorCode string

// Configuration error codes. These always abort a run without retry.
const (
	ErrStageNotFound     ErrorCode = "STAGE_NOT_FOUND"
	ErrExecutorNotFound  ErrorCode = "EXECUTOR_NOT_FOUND"
	ErrInvalidDefinition ErrorCode = "INVALID_DEFINITION"
)

// Execution error codes.
const (
	ErrPrecondition      ErrorCode = "PRECONDITION_FAILED"
	ErrStageTimeout      ErrorCode = "STAGE_TIMEOUT"
	ErrStageFailed       ErrorCode = "STAGE_FAILED"
	ErrAttemptsExhausted ErrorCode = "ATTEMPTS_EXHAUSTED"
	ErrRunCancelled      ErrorCode = "RUN_CANCELLED"
	ErrInputUnavailable  ErrorCode = "INPUT_UNAVAILABLE"
)

// State container error codes.
const (
	ErrInvalidCheckpoint ErrorCode = "INVALID_CHECKPOINT"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	StageID   string    `json:"stage_id,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithStage tags the error with the stage it occurred in.
func (e *Error) WithStage(stageID string) *Error {
	e.StageID = stageID
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
