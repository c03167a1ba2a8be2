package device

import (
	"sync/atomic"
	"time"
)

// Metrics contains atomic counters of a device.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// CycleCount indicates the number of question/answer cycles run.
	CycleCount atomic.Uint64
	// SuccessCount indicates the number of cycles with a valid answer.
	SuccessCount atomic.Uint64
	// TimeoutCount indicates the number of cycles without a terminated answer.
	TimeoutCount atomic.Uint64
	// ParseErrCount indicates the number of answers no pattern matched.
	ParseErrCount atomic.Uint64
	// DeviceErrCount indicates the number of device-reported errors.
	DeviceErrCount atomic.Uint64
	// WriteErrCount indicates the number of failed writes.
	WriteErrCount atomic.Uint64
	// ConnErrCount indicates the number of transport failures.
	ConnErrCount atomic.Uint64
	// RecoveryActionCount indicates the number of recovery actions run.
	RecoveryActionCount atomic.Uint64
	// ExhaustedCount indicates how often the recovery ladder was exhausted.
	ExhaustedCount atomic.Uint64

	// RecoveryLevelGauge indicates the current recovery level.
	RecoveryLevelGauge atomic.Int32
	// LastLatency holds the duration of the last successful cycle in nanoseconds.
	LastLatency atomic.Int64
}

func (m *Metrics) record(outcome Outcome, elapsed time.Duration) {
	m.CycleCount.Add(1)

	switch outcome {
	case OutcomeSuccess:
		m.SuccessCount.Add(1)
		m.LastLatency.Store(int64(elapsed))
	case OutcomeTimeout:
		m.TimeoutCount.Add(1)
	case OutcomeParseError:
		m.ParseErrCount.Add(1)
	case OutcomeDeviceError:
		m.DeviceErrCount.Add(1)
	case OutcomeWriteError:
		m.WriteErrCount.Add(1)
	case OutcomeConnectionError:
		m.ConnErrCount.Add(1)
	case OutcomeCanceled:
	}
}

func (m *Metrics) incRecoveryActionCount() {
	m.RecoveryActionCount.Add(1)
}

func (m *Metrics) incExhaustedCount() {
	m.ExhaustedCount.Add(1)
}

func (m *Metrics) setRecoveryLevel(level int) {
	m.RecoveryLevelGauge.Store(int32(level)) //nolint:gosec // plan levels are small
}

// LastLatencyDuration returns LastLatency as a duration.
func (m *Metrics) LastLatencyDuration() time.Duration {
	return time.Duration(m.LastLatency.Load())
}
