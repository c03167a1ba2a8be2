package device

import (
	"fmt"

	"github.com/arloliu/go-instrument/logger"
	"github.com/arloliu/go-instrument/recovery"
)

const (
	// DefaultMaxUnexpected is the number of consecutive unexpected answers
	// that starts recovery.
	DefaultMaxUnexpected = 3
	MinMaxUnexpected     = 1
	MaxMaxUnexpected     = 100

	// DefaultHistorySize is the number of cycle statistics kept.
	DefaultHistorySize = 32
	MinHistorySize     = 1
	MaxHistorySize     = 10000
)

// Config holds the device options.
type Config struct {
	logger        logger.Logger
	maxUnexpected int
	// maxUnexpectedSet is true when an option overrides the class value.
	maxUnexpectedSet bool
	historySize      int
	executor         recovery.Executor
	plan             recovery.Plan
}

// NewConfig applies opts over the defaults.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		logger:        logger.GetLogger(),
		maxUnexpected: DefaultMaxUnexpected,
		historySize:   DefaultHistorySize,
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// GetLogger returns the logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// MaxUnexpected returns the recovery threshold.
func (cfg *Config) MaxUnexpected() int { return cfg.maxUnexpected }

// HistorySize returns the number of cycle statistics kept.
func (cfg *Config) HistorySize() int { return cfg.historySize }

// Option configures a Device.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return fmt.Errorf("device: nil logger")
		}
		cfg.logger = l

		return nil
	})
}

// WithMaxUnexpected sets how many consecutive unexpected answers start
// recovery. It overrides the class setting.
func WithMaxUnexpected(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < MinMaxUnexpected || n > MaxMaxUnexpected {
			return fmt.Errorf("device: max unexpected %d out of range [%d, %d]", n, MinMaxUnexpected, MaxMaxUnexpected)
		}
		cfg.maxUnexpected = n
		cfg.maxUnexpectedSet = true

		return nil
	})
}

// WithHistorySize sets how many cycle statistics are kept.
func WithHistorySize(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < MinHistorySize || n > MaxHistorySize {
			return fmt.Errorf("device: history size %d out of range [%d, %d]", n, MinHistorySize, MaxHistorySize)
		}
		cfg.historySize = n

		return nil
	})
}

// WithActionExecutor replaces the executor of recovery actions. Settle
// times are still applied by the device after each action. The executor
// runs with the session lock held and must not call Session.Do.
func WithActionExecutor(e recovery.Executor) Option {
	return optFunc(func(cfg *Config) error {
		if e == nil {
			return fmt.Errorf("device: nil action executor")
		}
		cfg.executor = e

		return nil
	})
}

// WithRecoveryPlan replaces the class recovery plan.
func WithRecoveryPlan(plan recovery.Plan) Option {
	return optFunc(func(cfg *Config) error {
		if err := plan.Validate(); err != nil {
			return err
		}
		cfg.plan = plan.Clone()

		return nil
	})
}
