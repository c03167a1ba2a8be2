package device

import (
	"context"
	"errors"
	"time"

	"github.com/arloliu/go-instrument/codec"
	"github.com/arloliu/go-instrument/fault"
	"github.com/arloliu/go-instrument/recovery"
)

// Outcome classifies a finished cycle.
type Outcome uint8

const (
	OutcomeSuccess Outcome = iota
	OutcomeTimeout
	OutcomeParseError
	OutcomeDeviceError
	OutcomeWriteError
	OutcomeConnectionError
	OutcomeCanceled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeParseError:
		return "parse-error"
	case OutcomeDeviceError:
		return "device-error"
	case OutcomeWriteError:
		return "write-error"
	case OutcomeConnectionError:
		return "connection-error"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

func outcomeOf(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return OutcomeCanceled
	}

	switch fault.KindOf(err) {
	case fault.ErrTimeout:
		return OutcomeTimeout
	case fault.ErrDevice:
		return OutcomeDeviceError
	case fault.ErrWrite:
		return OutcomeWriteError
	case fault.ErrConnection:
		return OutcomeConnectionError
	default:
		return OutcomeParseError
	}
}

// CycleStat records one question/answer cycle.
type CycleStat struct {
	Action   string
	Question string
	Start    time.Time
	Elapsed  time.Duration
	Outcome  Outcome
	// Level is the recovery level in effect when the cycle ran.
	Level int
}

// Status is a snapshot of a device.
type Status struct {
	Class string
	Low   LowState
	High  HighState
	// LastCommand is the time the last question was sent.
	LastCommand time.Time
	// MaxAllowed is the max wait of the last question.
	MaxAllowed time.Duration
	// PendingAction is the action in progress, empty when idle.
	PendingAction   string
	LastQuestion    string
	ExpectedPattern string
	History         []CycleStat
	Unexpected      int
	MaxUnexpected   int
	Recovery        recovery.State
	Handlers        int
	LastError       string
	// LastResult is the last successful result.
	LastResult codec.Result
}

// Clone returns a deep copy of s.
func (s Status) Clone() Status {
	s.History = append([]CycleStat(nil), s.History...)
	s.Recovery.Counters = append([]int(nil), s.Recovery.Counters...)
	s.LastResult = cloneResult(s.LastResult)

	return s
}

// Lost reports whether the device needs a reconnect.
func (s Status) Lost() bool { return s.Low == LowLost }

func cloneResult(r codec.Result) codec.Result {
	r.Raw = append([]byte(nil), r.Raw...)
	r.Fields = append(r.Fields[:0:0], r.Fields...)
	if r.Values != nil {
		values := make(map[string]any, len(r.Values))
		for k, v := range r.Values {
			values[k] = v
		}
		r.Values = values
	}

	return r
}
