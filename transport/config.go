package transport

import (
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/arloliu/go-instrument/logger"
)

// Line defaults.
const (
	DefaultBaudRate = 9600
	DefaultDataBits = 8

	MinBaudRate = 300
	MaxBaudRate = 921600
	MinDataBits = 5
	MaxDataBits = 8
)

// Timing defaults and limits.
const (
	DefaultPollInterval   = 100 * time.Millisecond
	DefaultDrainWindow    = 20 * time.Millisecond
	DefaultConnectTimeout = 3 * time.Second

	MinPollInterval = 1 * time.Millisecond
	MaxPollInterval = 1 * time.Second

	MinDrainWindow = 1 * time.Millisecond
	MaxDrainWindow = 2 * time.Second

	// maxDrainRounds bounds a read-until-silence flush on a line that
	// never goes quiet.
	maxDrainRounds = 50
)

// FlushPolicy selects how stale input is discarded before a question.
type FlushPolicy uint8

const (
	// FlushReadThenReset reads until the line is silent for the drain
	// window, then resets the input buffer.
	FlushReadThenReset FlushPolicy = iota
	// FlushResetOnly resets the input buffer without waiting.
	FlushResetOnly
	// FlushNone keeps pending input. A session that was left dirty by an
	// aborted cycle is still drained.
	FlushNone
)

func (p FlushPolicy) String() string {
	switch p {
	case FlushReadThenReset:
		return "read-then-reset"
	case FlushResetOnly:
		return "reset-only"
	case FlushNone:
		return "none"
	default:
		return "unknown"
	}
}

// ParseFlushPolicy parses the String form of a policy.
func ParseFlushPolicy(s string) (FlushPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "read-then-reset":
		return FlushReadThenReset, nil
	case "reset-only":
		return FlushResetOnly, nil
	case "none":
		return FlushNone, nil
	default:
		return 0, fmt.Errorf("transport: unknown flush policy %q", s)
	}
}

// ParseParity parses "N", "O", "E", "M" or "S".
func ParseParity(s string) (serial.Parity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "N", "NONE":
		return serial.NoParity, nil
	case "O", "ODD":
		return serial.OddParity, nil
	case "E", "EVEN":
		return serial.EvenParity, nil
	case "M", "MARK":
		return serial.MarkParity, nil
	case "S", "SPACE":
		return serial.SpaceParity, nil
	default:
		return 0, fmt.Errorf("transport: unknown parity %q", s)
	}
}

// ParseStopBits parses "1", "1.5" or "2".
func ParseStopBits(s string) (serial.StopBits, error) {
	switch strings.TrimSpace(s) {
	case "", "1":
		return serial.OneStopBit, nil
	case "1.5":
		return serial.OnePointFiveStopBits, nil
	case "2":
		return serial.TwoStopBits, nil
	default:
		return 0, fmt.Errorf("transport: unknown stop bits %q", s)
	}
}

// Config holds the line and timing configuration of a Session.
type Config struct {
	mode         serial.Mode
	pollInterval time.Duration
	drainWindow  time.Duration
	flushPolicy  FlushPolicy
	logger       logger.Logger
}

// NewConfig creates a configuration with defaults overridden by opts.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		mode:         DefaultMode(),
		pollInterval: DefaultPollInterval,
		drainWindow:  DefaultDrainWindow,
		flushPolicy:  FlushReadThenReset,
		logger:       logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Mode returns the serial line mode.
func (cfg *Config) Mode() serial.Mode { return cfg.mode }

// PollInterval returns the read poll interval used while awaiting answers.
func (cfg *Config) PollInterval() time.Duration { return cfg.pollInterval }

// DrainWindow returns the silence window of FlushReadThenReset.
func (cfg *Config) DrainWindow() time.Duration { return cfg.drainWindow }

// FlushPolicy returns the flush policy.
func (cfg *Config) FlushPolicy() FlushPolicy { return cfg.flushPolicy }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option is a functional option for Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithMode sets the whole serial line mode.
func WithMode(mode serial.Mode) Option {
	return optFunc(func(cfg *Config) error {
		if err := validateMode(mode); err != nil {
			return err
		}
		cfg.mode = mode

		return nil
	})
}

// WithBaudRate sets the baud rate.
func WithBaudRate(rate int) Option {
	return optFunc(func(cfg *Config) error {
		if rate < MinBaudRate || rate > MaxBaudRate {
			return fmt.Errorf("transport: baud rate %d out of range [%d, %d]", rate, MinBaudRate, MaxBaudRate)
		}
		cfg.mode.BaudRate = rate

		return nil
	})
}

// WithDataBits sets the number of data bits.
func WithDataBits(bits int) Option {
	return optFunc(func(cfg *Config) error {
		if bits < MinDataBits || bits > MaxDataBits {
			return fmt.Errorf("transport: data bits %d out of range [%d, %d]", bits, MinDataBits, MaxDataBits)
		}
		cfg.mode.DataBits = bits

		return nil
	})
}

// WithParity sets the parity.
func WithParity(parity serial.Parity) Option {
	return optFunc(func(cfg *Config) error {
		if parity < serial.NoParity || parity > serial.SpaceParity {
			return fmt.Errorf("transport: invalid parity %d", parity)
		}
		cfg.mode.Parity = parity

		return nil
	})
}

// WithStopBits sets the number of stop bits.
func WithStopBits(stopBits serial.StopBits) Option {
	return optFunc(func(cfg *Config) error {
		if stopBits < serial.OneStopBit || stopBits > serial.TwoStopBits {
			return fmt.Errorf("transport: invalid stop bits %d", stopBits)
		}
		cfg.mode.StopBits = stopBits

		return nil
	})
}

// WithPollInterval sets how long a single read waits while awaiting an answer.
func WithPollInterval(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinPollInterval || d > MaxPollInterval {
			return fmt.Errorf("transport: poll interval %s out of range [%s, %s]", d, MinPollInterval, MaxPollInterval)
		}
		cfg.pollInterval = d

		return nil
	})
}

// WithDrainWindow sets the silence window used to drain stale input.
func WithDrainWindow(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinDrainWindow || d > MaxDrainWindow {
			return fmt.Errorf("transport: drain window %s out of range [%s, %s]", d, MinDrainWindow, MaxDrainWindow)
		}
		cfg.drainWindow = d

		return nil
	})
}

// WithFlushPolicy sets the flush policy applied before each question.
func WithFlushPolicy(p FlushPolicy) Option {
	return optFunc(func(cfg *Config) error {
		if p > FlushNone {
			return fmt.Errorf("transport: invalid flush policy %d", p)
		}
		cfg.flushPolicy = p

		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return fmt.Errorf("transport: logger is nil")
		}
		cfg.logger = l

		return nil
	})
}

func validateMode(mode serial.Mode) error {
	cfg := &Config{}
	for _, opt := range []Option{
		WithBaudRate(mode.BaudRate),
		WithDataBits(mode.DataBits),
		WithParity(mode.Parity),
		WithStopBits(mode.StopBits),
	} {
		if err := opt.apply(cfg); err != nil {
			return err
		}
	}

	return nil
}
