package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  ErrorCode = "CONFIG_INVALID"

	// Backend command errors
	ErrCodeAuthFailed        ErrorCode = "AUTH_FAILED"
	ErrCodeTransportFailure  ErrorCode = "TRANSPORT_FAILURE"
	ErrCodeBackendFailure    ErrorCode = "BACKEND_FAILURE"
	ErrCodeMalformedResponse ErrorCode = "MALFORMED_RESPONSE"
	ErrCodeCommandTimeout    ErrorCode = "COMMAND_TIMEOUT"
	ErrCodeCommandCanceled   ErrorCode = "COMMAND_CANCELED"

	// Streaming worker errors
	ErrCodeWorkerCrashed    ErrorCode = "WORKER_CRASHED"
	ErrCodeWorkerNotRunning ErrorCode = "WORKER_NOT_RUNNING"

	// Message bus and view errors
	ErrCodeChannelRejected ErrorCode = "CHANNEL_REJECTED"
	ErrCodeViewNotAllowed  ErrorCode = "VIEW_NOT_ALLOWED"
	ErrCodeStaleView       ErrorCode = "STALE_VIEW"

	// General errors
	ErrCodeCleanupFailed ErrorCode = "CLEANUP_FAILED"
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"
)

// StationError represents a structured error with context
type StationError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *StationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *StationError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *StationError) WithDetail(key string, value interface{}) *StationError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *StationError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new StationError
func New(code ErrorCode, message string) *StationError {
	return &StationError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a StationError
func Wrap(err error, code ErrorCode, message string) *StationError {
	return &StationError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific StationError code
func Is(err error, code ErrorCode) bool {
	return GetCode(err) == code && code != ""
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	stationErr, ok := err.(*StationError)
	if !ok {
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return stationErr.Code
}

// Message returns the operator-facing message of err. For a StationError
// that is its Message, otherwise the raw error text.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var cur error = err
	for cur != nil {
		if se, ok := cur.(*StationError); ok {
			return se.Message
		}
		unwrapper, ok := cur.(interface{ Unwrap() error })
		if !ok {
			break
		}
		cur = unwrapper.Unwrap()
	}
	return err.Error()
}
