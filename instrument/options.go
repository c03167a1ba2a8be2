package instrument

import (
	"github.com/arloliu/go-instrument/device"
	"github.com/arloliu/go-instrument/logger"
	"github.com/arloliu/go-instrument/transport"
)

// DialerFunc builds the dialer of a configured port.
type DialerFunc func(p PortConfig, opts ...transport.Option) (transport.Dialer, error)

type managerConfig struct {
	logger     logger.Logger
	devOpts    []device.Option
	dialerFunc DialerFunc
}

// Option configures a Manager.
type Option interface {
	apply(*managerConfig)
}

type optFunc func(*managerConfig)

func (f optFunc) apply(cfg *managerConfig) { f(cfg) }

// WithLogger sets the logger of the manager and of the sessions and devices
// it creates.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *managerConfig) {
		if l != nil {
			cfg.logger = l
		}
	})
}

// WithDeviceOptions adds options applied to every registered device.
func WithDeviceOptions(opts ...device.Option) Option {
	return optFunc(func(cfg *managerConfig) {
		cfg.devOpts = append(cfg.devOpts, opts...)
	})
}

// WithDialerFunc replaces the serial/TCP dialer selection of Open.
func WithDialerFunc(fn DialerFunc) Option {
	return optFunc(func(cfg *managerConfig) {
		if fn != nil {
			cfg.dialerFunc = fn
		}
	})
}

func defaultDialer(p PortConfig, opts ...transport.Option) (transport.Dialer, error) {
	return p.Dialer(opts...)
}
