package server

import (
	"errors"
	"fmt"
)

// Sentinel errors for server conditions.
var (
	// ErrNoPortAvailable is returned when every port in the range failed to bind.
	ErrNoPortAvailable = errors.New("server: no port available in range")

	// ErrServerStopped is returned by WaitListening when Stop ends the run.
	ErrServerStopped = errors.New("server: stopped")

	// ErrInvalidConfig is reported by WaitListening and Err when the port
	// range given to New cannot be used.
	ErrInvalidConfig = errors.New("server: invalid config")
)

// Protocol violation kinds, used as metric labels.
const (
	ViolationShortHello      = "short_hello"
	ViolationVersionMismatch = "version_mismatch"
)

// ProtocolError describes a violation that caused a connection to be closed
// without a reply.
type ProtocolError struct {
	ConnID  string
	Op      string
	Kind    string
	Message string
}

// Error returns the error message.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("server: protocol error on conn %s: %s: %s",
		e.ConnID, e.Op, e.Message)
}

// NewProtocolError creates a new ProtocolError.
func NewProtocolError(connID, op, kind, message string) *ProtocolError {
	return &ProtocolError{
		ConnID:  connID,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// BindError wraps the failure of a single port.
type BindError struct {
	Port uint16
	Err  error
}

// Error returns the error message.
func (e *BindError) Error() string {
	return fmt.Sprintf("server: bind 127.0.0.1:%d: %v", e.Port, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *BindError) Unwrap() error {
	return e.Err
}
