package engine

import (
	"errors"
	"fmt"
)

// ErrorKind is the category of a task failure. The orchestrator uses it to
// decide whether to carry on.
type ErrorKind int

const (
	// KindTransient is a socket or ioctl failure the next pass may not hit
	KindTransient ErrorKind = iota
	// KindSetup means a task could not acquire what it needs to run
	KindSetup
	// KindMalformedInput is unparseable data from a peer or controller
	KindMalformedInput
	// KindNoDevice is a negative probe. It is an outcome, not a fault
	KindNoDevice
)

// String returns a human-readable name for the error kind
func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "Transient Error"
	case KindSetup:
		return "Setup Error"
	case KindMalformedInput:
		return "Malformed Input"
	case KindNoDevice:
		return "No Device"
	default:
		return fmt.Sprintf("ErrorKind(%d)", k)
	}
}

// TaskError is the error a background task returns
type TaskError struct {
	Kind    ErrorKind // Category of error
	Adapter string    // Adapter the task was working on, if any
	Op      string    // Operation that failed (e.g., "open capture")
	Err     error     // Underlying error
}

// Error implements the error interface
func (e *TaskError) Error() string {
	where := e.Op
	if e.Adapter != "" {
		where = fmt.Sprintf("%s on %s", e.Op, e.Adapter)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, where, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, where)
}

// Unwrap returns the underlying error for error chain inspection
func (e *TaskError) Unwrap() error {
	return e.Err
}

// NewTransientError creates a transient error
func NewTransientError(adapter, op string, err error) *TaskError {
	return &TaskError{Kind: KindTransient, Adapter: adapter, Op: op, Err: err}
}

// NewSetupError creates a setup error
func NewSetupError(adapter, op string, err error) *TaskError {
	return &TaskError{Kind: KindSetup, Adapter: adapter, Op: op, Err: err}
}

// NewMalformedInputError creates a malformed input error
func NewMalformedInputError(adapter, op string, err error) *TaskError {
	return &TaskError{Kind: KindMalformedInput, Adapter: adapter, Op: op, Err: err}
}

// NewNoDeviceError creates a no-device outcome
func NewNoDeviceError(adapter, address string, err error) *TaskError {
	return &TaskError{Kind: KindNoDevice, Adapter: adapter, Op: "probe " + address, Err: err}
}

func isKind(err error, kind ErrorKind) bool {
	var te *TaskError
	if errors.As(err, &te) {
		return te.Kind == kind
	}
	return false
}

// IsTransient checks if an error is a transient error
func IsTransient(err error) bool {
	return isKind(err, KindTransient)
}

// IsSetup checks if an error is a setup error
func IsSetup(err error) bool {
	return isKind(err, KindSetup)
}

// IsMalformedInput checks if an error is a malformed input error
func IsMalformedInput(err error) bool {
	return isKind(err, KindMalformedInput)
}

// IsNoDevice checks if an error is a no-device outcome
func IsNoDevice(err error) bool {
	return isKind(err, KindNoDevice)
}
