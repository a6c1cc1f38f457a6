package persist

import "errors"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"
	// CodeInvalidStoreURL indicates a filename and directory could not be
	// combined into a usable store location.
	CodeInvalidStoreURL Code = "INVALID_STORE_URL"
	// CodeCoordinatorFailure indicates the backing store could not be
	// attached, opened, or written.
	CodeCoordinatorFailure Code = "COORDINATOR_FAILURE"
	// CodeFileRemoval indicates reset could not remove the backing store.
	CodeFileRemoval Code = "FILE_REMOVAL"
	// CodeStoreDetached indicates an operation reached a coordinator whose
	// store has been detached, typically mid-reset or after a failed one.
	CodeStoreDetached Code = "STORE_DETACHED"
	// CodeSessionClosed indicates an operation against a closed session.
	CodeSessionClosed Code = "SESSION_CLOSED"
	// CodeResetInFlight indicates a reset was requested while another reset
	// had not completed.
	CodeResetInFlight Code = "RESET_IN_FLIGHT"
)

// Error is the persistence error type with structured metadata.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Internal message (for logs/telemetry)
	Cause   error  // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a persistence error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a persistence error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf extracts the code from err, or CodeUnknown for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
