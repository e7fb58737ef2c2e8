package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Watch session errors
	ErrCodeWatchConsumed ErrorCode = "WATCH_CONSUMED"
	ErrCodeControlSend   ErrorCode = "CONTROL_SEND"
	ErrCodeWatchClosed   ErrorCode = "WATCH_CLOSED"
	ErrCodeInvalidGlob   ErrorCode = "INVALID_GLOB"

	// Daemon errors
	ErrCodeDaemonNotRunning ErrorCode = "DAEMON_NOT_RUNNING"
	ErrCodeDaemonConflict   ErrorCode = "DAEMON_CONFLICT"
	ErrCodeSocketUnusable   ErrorCode = "SOCKET_UNUSABLE"

	// Remote cache API errors
	ErrCodeAPIUnavailable ErrorCode = "API_UNAVAILABLE"
	ErrCodeAPIStatus      ErrorCode = "API_STATUS"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// RelicError represents a structured error with context
type RelicError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *RelicError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *RelicError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *RelicError) WithDetail(key string, value interface{}) *RelicError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *RelicError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new RelicError
func New(code ErrorCode, message string) *RelicError {
	return &RelicError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a RelicError
func Wrap(err error, code ErrorCode, message string) *RelicError {
	return &RelicError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific RelicError code
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	relicErr, ok := err.(*RelicError)
	if !ok {
		return false
	}
	return relicErr.Code == code
}

// GetCode extracts the error code, or ErrCodeInternal for plain errors.
func GetCode(err error) ErrorCode {
	if relicErr, ok := err.(*RelicError); ok {
		return relicErr.Code
	}
	return ErrCodeInternal
}
