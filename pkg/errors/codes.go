package errors

import "fmt"

// ErrorCode represents a unique identifier for specific error conditions in NAA.
type ErrorCode int

const (
	ErrCodeUnknown       ErrorCode = 1000
	ErrCodeConfigInvalid ErrorCode = 1001
	ErrCodeConfigIO      ErrorCode = 1002

	// Run phase
	ErrCodeLaunchFailed ErrorCode = 2001
	ErrCodeMuteFailed   ErrorCode = 2002
	ErrCodeShutdownFail ErrorCode = 2003

	// Control surface
	ErrCodeControlSocket  ErrorCode = 3001
	ErrCodeControlRequest ErrorCode = 3002

	// Platform integration
	ErrCodeAutostartFailed ErrorCode = 4001
	ErrCodeUnsupported     ErrorCode = 4002
	ErrCodePrivilege       ErrorCode = 4003
)

// NAAError is a custom error type that provides structured error information,
// including an error code, the operation being performed, and the underlying cause.
type NAAError struct {
	// Code is the specific error code.
	Code ErrorCode
	// Msg is a human-readable description of the error.
	Msg string
	// Operation describes the action being performed when the error occurred.
	Operation string
	// Err is the underlying error that caused this error, if any.
	Err error
}

// Error returns a formatted string representation of the error.
func (e *NAAError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %s (cause: %v)", e.Code, e.Operation, e.Msg, e.Err)
	}
	return fmt.Sprintf("[%d] %s: %s", e.Code, e.Operation, e.Msg)
}

// Unwrap returns the underlying error.
func (e *NAAError) Unwrap() error {
	return e.Err
}

// Is matches another *NAAError by code, so sentinel-style checks work:
// errors.Is(err, &NAAError{Code: ErrCodeConfigInvalid}).
func (e *NAAError) Is(target error) bool {
	t, ok := target.(*NAAError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a new NAAError with the specified code, operation, message, and underlying error.
func New(code ErrorCode, op, msg string, err error) error {
	return &NAAError{
		Code:      code,
		Msg:       msg,
		Operation: op,
		Err:       err,
	}
}

// HasCode reports whether err, or any error it wraps, is an NAAError with the given code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if e, ok := err.(*NAAError); ok && e.Code == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Personal.AI order the ending
