package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNAAError_Error(t *testing.T) {
	err := New(ErrCodeConfigInvalid, "LoadConfig", "run_hour out of range", nil)
	expected := "[1001] LoadConfig: run_hour out of range"
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}

	cause := errors.New("file not found")
	errWithCause := New(ErrCodeConfigIO, "LoadConfig", "cannot read config", cause)
	expectedWithCause := "[1002] LoadConfig: cannot read config (cause: file not found)"
	if errWithCause.Error() != expectedWithCause {
		t.Errorf("Expected %q, got %q", expectedWithCause, errWithCause.Error())
	}
}

func TestNAAError_Unwrap(t *testing.T) {
	cause := errors.New("exec: not found")
	err := New(ErrCodeLaunchFailed, "Launch", "cannot start program", cause)

	if !errors.Is(err, cause) {
		t.Errorf("Expected errors.Is to find cause %v", cause)
	}

	errNoCause := New(ErrCodeLaunchFailed, "Launch", "cannot start program", nil)
	if errors.Unwrap(errNoCause) != nil {
		t.Errorf("Expected nil cause, got %v", errors.Unwrap(errNoCause))
	}
}

func TestNAAError_IsByCode(t *testing.T) {
	err := fmt.Errorf("startup: %w", New(ErrCodeConfigInvalid, "Validate", "mismatched lists", nil))

	if !errors.Is(err, &NAAError{Code: ErrCodeConfigInvalid}) {
		t.Error("Expected wrapped error to match by code")
	}
	if errors.Is(err, &NAAError{Code: ErrCodeLaunchFailed}) {
		t.Error("Expected no match for a different code")
	}
}

func TestHasCode(t *testing.T) {
	inner := New(ErrCodeControlSocket, "Dial", "connection refused", nil)
	wrapped := fmt.Errorf("trigger: %w", inner)

	if !HasCode(wrapped, ErrCodeControlSocket) {
		t.Error("Expected HasCode to find the control socket code")
	}
	if HasCode(wrapped, ErrCodeConfigIO) {
		t.Error("Expected HasCode to reject an unrelated code")
	}
	if HasCode(nil, ErrCodeUnknown) {
		t.Error("Expected HasCode(nil) to be false")
	}
}

func TestNAAError_Fields(t *testing.T) {
	err := New(ErrCodeShutdownFail, "ScheduleShutdown", "shutdown command failed", nil).(*NAAError)
	if err.Code != ErrCodeShutdownFail {
		t.Errorf("Expected code %v, got %v", ErrCodeShutdownFail, err.Code)
	}
	if err.Operation != "ScheduleShutdown" {
		t.Errorf("Expected operation %q, got %q", "ScheduleShutdown", err.Operation)
	}
	if err.Msg != "shutdown command failed" {
		t.Errorf("Expected message %q, got %q", "shutdown command failed", err.Msg)
	}
}
