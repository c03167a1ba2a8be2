// Package fault defines the error taxonomy shared by the transport, codec,
// device and recovery layers.
//
// Each failure class has a sentinel so callers can branch with errors.Is:
//
//   - ErrConnection: the transport cannot be opened or held.
//   - ErrWrite: writing a question to the transport failed.
//   - ErrTimeout: no terminator was observed within the command's max wait.
//   - ErrParse: bytes arrived but no answer pattern alternative matched.
//   - ErrDevice: the answer encodes a device-reported fault.
//   - ErrRecoveryExhausted: the recovery ladder reached its abort level.
//
// Write, timeout, parse and most device errors are absorbed by the recovery
// ladder; only ErrRecoveryExhausted and unrecoverable ErrConnection reach the
// caller, always wrapped in a *CommandError.
package fault

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConnection        = errors.New("connection error")
	ErrWrite             = errors.New("write error")
	ErrTimeout           = errors.New("timeout error")
	ErrParse             = errors.New("parse error")
	ErrDevice            = errors.New("device error")
	ErrRecoveryExhausted = errors.New("recovery exhausted")
)

// CommandError describes a failed command cycle.
//
// It unwraps to both Kind and Err, so errors.Is matches the taxonomy
// sentinel as well as the underlying cause.
type CommandError struct {
	// Kind is one of the package sentinels.
	Kind error
	// Class is the device class name, e.g. "TR".
	Class string
	// Question is the wire text of the command, without terminator.
	Question string
	// Raw is the last raw buffer received, possibly empty.
	Raw []byte
	// Pattern is the textual form of the expected answer pattern.
	Pattern string
	// Level is the recovery level reached when the error was produced.
	Level int
	// Code is the device-reported error code for ErrDevice, zero otherwise.
	Code int
	// Message is the error-table text for Code.
	Message string
	// Err is the underlying cause, may be nil.
	Err error
}

func (e *CommandError) Error() string {
	var sb strings.Builder

	if e.Class != "" {
		sb.WriteString(e.Class)
		sb.WriteString(": ")
	}

	kind := e.Kind
	if kind == nil {
		kind = errors.New("command failed")
	}
	sb.WriteString(kind.Error())

	if e.Question != "" {
		fmt.Fprintf(&sb, " (question %q)", e.Question)
	}

	if e.Code != 0 {
		fmt.Fprintf(&sb, ": code %d", e.Code)
		if e.Message != "" {
			sb.WriteString(" ")
			sb.WriteString(e.Message)
		}
	}

	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}

	if len(e.Raw) > 0 {
		fmt.Fprintf(&sb, ", raw %q", e.Raw)
	}

	if e.Level > 0 {
		fmt.Fprintf(&sb, ", recovery level %d", e.Level)
	}

	return sb.String()
}

func (e *CommandError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}

	return errs
}

// New creates a CommandError of the given kind wrapping cause.
func New(kind error, class string, cause error) *CommandError {
	return &CommandError{Kind: kind, Class: class, Err: cause}
}

// KindOf returns the taxonomy sentinel err belongs to, or nil if err does
// not carry one.
func KindOf(err error) error {
	for _, kind := range []error{ErrRecoveryExhausted, ErrConnection, ErrWrite, ErrTimeout, ErrDevice, ErrParse} {
		if errors.Is(err, kind) {
			return kind
		}
	}

	return nil
}

// IsRecoverable reports whether err is absorbed by the recovery ladder
// rather than propagated to the caller.
func IsRecoverable(err error) bool {
	switch KindOf(err) {
	case ErrWrite, ErrTimeout, ErrParse, ErrDevice:
		return true
	default:
		return false
	}
}

// AsCommandError is a shorthand for errors.As with *CommandError.
func AsCommandError(err error) (*CommandError, bool) {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr, true
	}

	return nil, false
}
