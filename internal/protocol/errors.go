package protocol

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of a protocol or session error.
type ErrorType int

const (
	// ErrTypeLength indicates a payload shorter than its format requires
	ErrTypeLength ErrorType = iota
	// ErrTypeCRCMismatch indicates a frame whose checksum does not match
	ErrTypeCRCMismatch
	// ErrTypeInvalidFraming indicates bad sync bytes
	ErrTypeInvalidFraming
	// ErrTypeNotConnected indicates a command issued without a session
	ErrTypeNotConnected
	// ErrTypeTimeout indicates no response arrived in time
	ErrTypeTimeout
	// ErrTypeParameterOutOfRange indicates an argument outside its valid range
	ErrTypeParameterOutOfRange
	// ErrTypeProbeNotFound indicates an unknown probe serial
	ErrTypeProbeNotFound
	// ErrTypeConnectionFailed indicates every connection attempt failed
	ErrTypeConnectionFailed
	// ErrTypeAlreadyConnecting indicates a connection attempt is in flight
	ErrTypeAlreadyConnecting
	// ErrTypeCommandFailed indicates the probe rejected a request
	ErrTypeCommandFailed
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeLength:
		return "Length Error"
	case ErrTypeCRCMismatch:
		return "CRC Mismatch"
	case ErrTypeInvalidFraming:
		return "Invalid Framing"
	case ErrTypeNotConnected:
		return "Not Connected"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeParameterOutOfRange:
		return "Parameter Out Of Range"
	case ErrTypeProbeNotFound:
		return "Probe Not Found"
	case ErrTypeConnectionFailed:
		return "Connection Failed"
	case ErrTypeAlreadyConnecting:
		return "Already Connecting"
	case ErrTypeCommandFailed:
		return "Command Failed"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Error is the error returned by protocol decoders and probe sessions.
type Error struct {
	Type     ErrorType // Category of error
	Message  string    // Human-readable error message
	Expected uint16    // Expected CRC (CRC mismatch only)
	Actual   uint16    // Received CRC (CRC mismatch only)
	Err      error     // Underlying error (if any)
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if e.Type == ErrTypeCRCMismatch {
		msg = fmt.Sprintf("expected 0x%04X, got 0x%04X", e.Expected, e.Actual)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, msg, e.Err)
	}
	if msg == "" {
		return e.Type.String()
	}
	return fmt.Sprintf("%s: %s", e.Type, msg)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Type, so the sentinels below work with
// errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Type == e.Type
}

// Retryable reports whether repeating the operation may succeed.
func (e *Error) Retryable() bool {
	return e.Type == ErrTypeTimeout || e.Type == ErrTypeConnectionFailed
}

// Sentinels for errors.Is.
var (
	ErrLength              = &Error{Type: ErrTypeLength}
	ErrCRCMismatch         = &Error{Type: ErrTypeCRCMismatch}
	ErrInvalidFraming      = &Error{Type: ErrTypeInvalidFraming}
	ErrNotConnected        = &Error{Type: ErrTypeNotConnected}
	ErrTimeout             = &Error{Type: ErrTypeTimeout}
	ErrParameterOutOfRange = &Error{Type: ErrTypeParameterOutOfRange}
	ErrProbeNotFound       = &Error{Type: ErrTypeProbeNotFound}
	ErrConnectionFailed    = &Error{Type: ErrTypeConnectionFailed}
	ErrAlreadyConnecting   = &Error{Type: ErrTypeAlreadyConnecting}
	ErrCommandFailed       = &Error{Type: ErrTypeCommandFailed}
)

// NewError builds an *Error with a formatted message.
func NewError(t ErrorType, format string, args ...any) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

func lengthError(what string, need, got int) *Error {
	return NewError(ErrTypeLength, "%s needs at least %d bytes, got %d", what, need, got)
}

// IsType reports whether err is, or wraps, an *Error of type t.
func IsType(err error, t ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}
