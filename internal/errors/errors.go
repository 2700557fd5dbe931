package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Preconditions
	ErrCodePrecondition    ErrorCode = "PRECONDITION_FAILED"
	ErrCodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED"
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"

	// Call session
	ErrCodeBusy     ErrorCode = "BUSY"
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// Connectivity
	ErrCodeNotConnected ErrorCode = "NOT_CONNECTED"
	ErrCodeConnectivity ErrorCode = "CONNECTIVITY"

	// Device
	ErrCodeDevice ErrorCode = "DEVICE_ERROR"

	// Internal
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeStorage  ErrorCode = "STORAGE_ERROR"
	ErrCodeExternal ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

// AppError is a structured error carried between agent components
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Common error constructors

// Precondition reports a missing credential or endpoint. Callers must not retry;
// the device has to be re-bound first.
func Precondition(reason string) *AppError {
	return New(ErrCodePrecondition, "Device needs rebinding").WithDetails(map[string]string{"reason": reason})
}

func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func MissingRequired(field string) *AppError {
	return New(ErrCodeMissingRequired, fmt.Sprintf("%s is required", field))
}

func InvalidInput(field string, reason string) *AppError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("Invalid %s: %s", field, reason))
}

func Busy(activeCallID string) *AppError {
	return New(ErrCodeBusy, "A call session is already active").
		WithDetails(map[string]string{"reason": "busy", "activeCallId": activeCallID})
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func NotConnected() *AppError {
	return New(ErrCodeNotConnected, "Connection is not established")
}

func Connectivity(cause error) *AppError {
	return Wrap(ErrCodeConnectivity, "Connection failed", cause)
}

func Device(operation string, cause error) *AppError {
	return Wrap(ErrCodeDevice, fmt.Sprintf("Device operation failed: %s", operation), cause)
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

func Storage(cause error) *AppError {
	return Wrap(ErrCodeStorage, "State store error", cause)
}

func External(service string, cause error) *AppError {
	return Wrap(ErrCodeExternal, fmt.Sprintf("External service error: %s", service), cause)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the error code if the error is an AppError, otherwise returns ErrCodeInternal
func GetCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}
