package errors

import (
	"fmt"
	"os/exec"
	"time"
)

// MalformedResponseMessage is the fixed diagnostic for backend output that
// carries no parseable terminal value.
const MalformedResponseMessage = "malformed response"

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *StationError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *StationError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// AuthFailed reports a rejected login. The message is shown to the operator verbatim.
func AuthFailed(message string) *StationError {
	return New(ErrCodeAuthFailed, message)
}

// TransportFailure creates an error for a backend that could not be spawned or
// died without a reply. The message is the raw error text.
func TransportFailure(command string, err error) *StationError {
	stationErr := Wrap(err, ErrCodeTransportFailure, err.Error()).
		WithDetail("command", command)

	if exitErr, ok := err.(*exec.ExitError); ok {
		stationErr = stationErr.WithDetail("exitCode", exitErr.ExitCode())
	}

	return stationErr
}

// BackendFailure creates an error for a backend reply whose status is not success.
func BackendFailure(command, message string) *StationError {
	if message == "" {
		message = fmt.Sprintf("%s failed", command)
	}
	return New(ErrCodeBackendFailure, message).
		WithDetail("command", command)
}

// MalformedResponse creates an error for backend output without a terminal JSON value.
func MalformedResponse(command string) *StationError {
	return New(ErrCodeMalformedResponse, MalformedResponseMessage).
		WithDetail("command", command)
}

// CommandTimeout creates an error for a backend call that exceeded its deadline.
func CommandTimeout(command string, timeout time.Duration) *StationError {
	return New(ErrCodeCommandTimeout,
		fmt.Sprintf("%s did not answer within %s", command, timeout)).
		WithDetail("command", command).
		WithDetail("timeout", timeout.String())
}

// CommandCanceled creates an error for a backend call abandoned by its caller.
func CommandCanceled(command string, err error) *StationError {
	return Wrap(err, ErrCodeCommandCanceled, fmt.Sprintf("%s was canceled", command)).
		WithDetail("command", command)
}

// ChannelRejected creates an error for a message name outside the allow-list.
func ChannelRejected(direction, channel string) *StationError {
	return New(ErrCodeChannelRejected,
		fmt.Sprintf("%s channel %q is not allowed", direction, channel)).
		WithDetail("direction", direction).
		WithDetail("channel", channel)
}

// ViewNotAllowed creates an error for an action the current session may not perform.
func ViewNotAllowed(action string) *StationError {
	return New(ErrCodeViewNotAllowed, fmt.Sprintf("%s is not permitted for the current session", action)).
		WithDetail("action", action)
}

// StaleView creates an error for traffic from a window the registry no longer owns.
func StaleView(windowID string) *StationError {
	return New(ErrCodeStaleView, fmt.Sprintf("window %s is not registered", windowID)).
		WithDetail("window", windowID)
}

// WorkerNotRunning creates an error for a command sent with no streaming worker.
func WorkerNotRunning(command string) *StationError {
	return New(ErrCodeWorkerNotRunning, "recognition worker is not running").
		WithDetail("command", command)
}

// InvalidInput creates an input validation error
func InvalidInput(field, reason string) *StationError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("invalid %s: %s", field, reason)).
		WithDetail("field", field)
}

// WorkerCrashed creates an error for a streaming worker that exited on its own.
func WorkerCrashed(err error) *StationError {
	return Wrap(err, ErrCodeWorkerCrashed, "recognition worker exited unexpectedly")
}

// CleanupFailed creates an error for a transient file that could not be removed.
func CleanupFailed(path string, err error) *StationError {
	return Wrap(err, ErrCodeCleanupFailed, fmt.Sprintf("failed to remove %s", path)).
		WithDetail("path", path)
}
