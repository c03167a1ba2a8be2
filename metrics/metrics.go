// Package metrics exposes device counters to prometheus.
//
// Per-device counters are read straight from device.Metrics through
// CounterFunc and GaugeFunc collectors labelled with the class and port, so
// collection never takes a device lock.
package metrics

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-instrument/device"
	"github.com/arloliu/go-instrument/fault"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "instrument"

// ErrRegistered is returned when a class is registered twice.
var ErrRegistered = errors.New("metrics: class already registered")

// Exporter registers device collectors on a prometheus registerer.
type Exporter struct {
	reg       prometheus.Registerer
	namespace string
	devices   *xsync.MapOf[string, []prometheus.Collector]
	commands  *prometheus.CounterVec
}

// Option configures an Exporter.
type Option interface {
	apply(*Exporter)
}

type optFunc func(*Exporter)

func (f optFunc) apply(e *Exporter) { f(e) }

// WithNamespace overrides DefaultNamespace.
func WithNamespace(ns string) Option {
	return optFunc(func(e *Exporter) {
		e.namespace = ns
	})
}

// NewExporter creates an exporter registering on reg, the default
// registerer when nil.
func NewExporter(reg prometheus.Registerer, opts ...Option) (*Exporter, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	e := &Exporter{
		reg:       reg,
		namespace: DefaultNamespace,
		devices:   xsync.NewMapOf[string, []prometheus.Collector](),
	}
	for _, opt := range opts {
		opt.apply(e)
	}

	e.commands = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: e.namespace,
		Name:      "commands_total",
		Help:      "Commands issued, by class, action and result.",
	}, []string{"class", "action", "result"})
	if err := reg.Register(e.commands); err != nil {
		return nil, fmt.Errorf("metrics: register commands: %w", err)
	}

	return e, nil
}

// Register adds the collectors of dev and counts its commands.
func (e *Exporter) Register(dev *device.Device) error {
	labels := prometheus.Labels{"class": dev.Name(), "port": dev.Session().Name()}
	m := dev.Metrics()

	counters := []struct {
		name string
		help string
		fn   func() uint64
	}{
		{"cycles_total", "Question/answer cycles run.", m.CycleCount.Load},
		{"successes_total", "Cycles with a valid answer.", m.SuccessCount.Load},
		{"timeouts_total", "Cycles without a terminated answer.", m.TimeoutCount.Load},
		{"parse_errors_total", "Answers no pattern matched.", m.ParseErrCount.Load},
		{"device_errors_total", "Errors reported by the device.", m.DeviceErrCount.Load},
		{"write_errors_total", "Failed writes.", m.WriteErrCount.Load},
		{"connection_errors_total", "Transport failures.", m.ConnErrCount.Load},
		{"recovery_actions_total", "Recovery actions run.", m.RecoveryActionCount.Load},
		{"recovery_exhausted_total", "Exhausted recovery ladders.", m.ExhaustedCount.Load},
	}

	collectors := make([]prometheus.Collector, 0, len(counters)+3)
	for _, c := range counters {
		fn := c.fn
		collectors = append(collectors, prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   e.namespace,
			Subsystem:   "device",
			Name:        c.name,
			Help:        c.help,
			ConstLabels: labels,
		}, func() float64 { return float64(fn()) }))
	}

	collectors = append(collectors,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   e.namespace,
			Subsystem:   "device",
			Name:        "recovery_level",
			Help:        "Current recovery level, 0 when healthy.",
			ConstLabels: labels,
		}, func() float64 { return float64(m.RecoveryLevelGauge.Load()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   e.namespace,
			Subsystem:   "device",
			Name:        "last_latency_seconds",
			Help:        "Duration of the last successful cycle.",
			ConstLabels: labels,
		}, func() float64 { return m.LastLatencyDuration().Seconds() }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   e.namespace,
			Subsystem:   "device",
			Name:        "lost",
			Help:        "1 when the device needs a reconnect.",
			ConstLabels: labels,
		}, func() float64 {
			if dev.Status().Lost() {
				return 1
			}

			return 0
		}),
	)

	if _, loaded := e.devices.LoadOrStore(dev.Name(), collectors); loaded {
		return fmt.Errorf("%w: %s", ErrRegistered, dev.Name())
	}

	for i, c := range collectors {
		if err := e.reg.Register(c); err != nil {
			for _, done := range collectors[:i] {
				e.reg.Unregister(done)
			}
			e.devices.Delete(dev.Name())

			return fmt.Errorf("metrics: register %s: %w", dev.Name(), err)
		}
	}

	dev.AddHandler(e.observe)

	return nil
}

// RegisterAll registers every device in devs.
func (e *Exporter) RegisterAll(devs ...*device.Device) error {
	for _, dev := range devs {
		if err := e.Register(dev); err != nil {
			return err
		}
	}

	return nil
}

// Unregister removes the collectors of class. Command counts already
// recorded for the class are kept.
func (e *Exporter) Unregister(class string) bool {
	collectors, ok := e.devices.LoadAndDelete(class)
	if !ok {
		return false
	}

	for _, c := range collectors {
		e.reg.Unregister(c)
	}

	return true
}

func (e *Exporter) observe(ev device.Event) {
	e.commands.WithLabelValues(ev.Class, ev.Action, resultLabel(ev.Err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, fault.ErrRecoveryExhausted):
		return "exhausted"
	case errors.Is(err, fault.ErrConnection):
		return "connection_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
