// Package instrument is the upward API of the engine. A Manager owns the
// sessions of a deployment and the devices bound to them, and routes
// commands by class name.
//
//	mgr := instrument.NewManager(catalog.Builtin())
//	cfg, _ := instrument.LoadConfig("deployment.yaml")
//	if err := mgr.Open(ctx, cfg); err != nil {
//		return err
//	}
//	defer mgr.Close()
//
//	res, err := mgr.IssueCommand(ctx, "TR", "move_to", -1200, 3100)
package instrument

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-instrument/catalog"
	"github.com/arloliu/go-instrument/codec"
	"github.com/arloliu/go-instrument/device"
	"github.com/arloliu/go-instrument/internal/task"
	"github.com/arloliu/go-instrument/logger"
	"github.com/arloliu/go-instrument/transport"
)

var (
	// ErrNotRegistered is returned for classes without a registered device.
	ErrNotRegistered = errors.New("instrument: class not registered")
	// ErrDuplicateClass is returned when a class is registered twice.
	ErrDuplicateClass = errors.New("instrument: class already registered")
	// ErrManagerClosed is returned by a closed manager.
	ErrManagerClosed = errors.New("instrument: manager closed")
)

// Manager routes commands to devices by class name.
type Manager struct {
	cat    *catalog.Catalog
	cfg    managerConfig
	logger logger.Logger

	devices  *xsync.MapOf[string, *device.Device]
	sessions *xsync.MapOf[string, *transport.Session]
	tasks    *task.Manager

	mu       sync.Mutex
	handlers []device.Handler
	closed   bool
}

// NewManager creates a manager resolving classes in cat, the built-in
// catalog when nil.
func NewManager(cat *catalog.Catalog, opts ...Option) *Manager {
	if cat == nil {
		cat = catalog.Builtin()
	}

	cfg := managerConfig{
		logger:     logger.GetLogger(),
		dialerFunc: defaultDialer,
	}
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	return &Manager{
		cat:      cat,
		cfg:      cfg,
		logger:   cfg.logger,
		devices:  xsync.NewMapOf[string, *device.Device](),
		sessions: xsync.NewMapOf[string, *transport.Session](),
		tasks:    task.NewManager(context.Background(), cfg.logger),
	}
}

// Catalog returns the class catalog of the manager.
func (m *Manager) Catalog() *catalog.Catalog { return m.cat }

// Open applies the catalog overrides of cfg, then opens every port and
// registers its classes. On failure the ports opened so far are closed.
func (m *Manager) Open(ctx context.Context, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.CatalogFile != "" {
		if err := m.cat.LoadFile(cfg.CatalogFile); err != nil {
			return err
		}
	}
	if err := m.cat.Apply(cfg.Classes...); err != nil {
		return err
	}

	var devOpts []device.Option
	if cfg.MaxUnexpected > 0 {
		devOpts = append(devOpts, device.WithMaxUnexpected(cfg.MaxUnexpected))
	}
	if cfg.HistorySize > 0 {
		devOpts = append(devOpts, device.WithHistorySize(cfg.HistorySize))
	}

	var opened []*transport.Session
	for _, p := range cfg.Ports {
		sess, err := m.openPort(ctx, p)
		if err == nil {
			opened = append(opened, sess)
			err = m.register(sess, devOpts, p.Classes...)
		}
		if err != nil {
			for _, s := range opened {
				m.unregister(s)
			}

			return fmt.Errorf("instrument: open port %s: %w", p.Name, err)
		}
	}

	return nil
}

func (m *Manager) openPort(ctx context.Context, p PortConfig) (*transport.Session, error) {
	opts, err := p.SessionOptions()
	if err != nil {
		return nil, err
	}

	if p.Flush == "" {
		for _, name := range p.Classes {
			cls, err := m.cat.Class(name)
			if err != nil {
				return nil, err
			}
			if policy, ok := cls.FlushPolicy(); ok {
				opts = append(opts, transport.WithFlushPolicy(policy))
				break
			}
		}
	}
	opts = append(opts, transport.WithLogger(m.logger))

	dialer, err := m.cfg.dialerFunc(p, opts...)
	if err != nil {
		return nil, err
	}

	sess, err := transport.NewSession(p.Name, dialer, opts...)
	if err != nil {
		return nil, err
	}
	if err := sess.Open(ctx); err != nil {
		return nil, err
	}

	m.logger.Info("instrument: port opened", "port", p.Name, "classes", p.Classes)

	return sess, nil
}

// Register binds classes to an existing session. The session is closed by
// Close.
func (m *Manager) Register(sess *transport.Session, classes ...string) error {
	return m.register(sess, nil, classes...)
}

func (m *Manager) register(sess *transport.Session, extra []device.Option, classes ...string) error {
	if sess == nil {
		return device.ErrNilSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrManagerClosed
	}

	opts := []device.Option{device.WithLogger(m.logger)}
	opts = append(opts, m.cfg.devOpts...)
	opts = append(opts, extra...)

	devs := make([]*device.Device, 0, len(classes))
	for _, name := range classes {
		if _, ok := m.devices.Load(name); ok || slices.ContainsFunc(devs, func(d *device.Device) bool { return d.Name() == name }) {
			return fmt.Errorf("%w: %s", ErrDuplicateClass, name)
		}

		cls, err := m.cat.Class(name)
		if err != nil {
			return err
		}

		dev, err := device.New(cls, sess, opts...)
		if err != nil {
			return err
		}
		dev.AddHandler(m.handlers...)
		devs = append(devs, dev)
	}

	for _, dev := range devs {
		m.devices.Store(dev.Name(), dev)
	}
	m.sessions.Store(sess.Name(), sess)

	return nil
}

func (m *Manager) unregister(sess *transport.Session) {
	m.devices.Range(func(name string, dev *device.Device) bool {
		if dev.Session() == sess {
			m.devices.Delete(name)
		}

		return true
	})
	m.sessions.Delete(sess.Name())

	if err := sess.Close(); err != nil {
		m.logger.Warn("instrument: close session failed", "port", sess.Name(), "error", err)
	}
}

// Device returns the device registered for class.
func (m *Manager) Device(class string) (*device.Device, error) {
	dev, ok := m.devices.Load(class)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, class)
	}

	return dev, nil
}

// Devices returns the registered devices sorted by class name.
func (m *Manager) Devices() []*device.Device {
	devs := make([]*device.Device, 0, m.devices.Size())
	m.devices.Range(func(_ string, dev *device.Device) bool {
		devs = append(devs, dev)
		return true
	})
	slices.SortFunc(devs, func(a, b *device.Device) int {
		return strings.Compare(a.Name(), b.Name())
	})

	return devs
}

// Classes returns the registered class names, sorted.
func (m *Manager) Classes() []string {
	devs := m.Devices()
	names := make([]string, len(devs))
	for i, dev := range devs {
		names[i] = dev.Name()
	}

	return names
}

// IssueCommand sends action with params to the device of class and
// returns the parsed answer.
func (m *Manager) IssueCommand(ctx context.Context, class string, action string, params ...any) (codec.Result, error) {
	dev, err := m.Device(class)
	if err != nil {
		return codec.Result{}, err
	}

	return dev.IssueCommand(ctx, action, params...)
}

// GetStatus returns a snapshot of the status of the device of class.
func (m *Manager) GetStatus(class string) (device.Status, error) {
	dev, err := m.Device(class)
	if err != nil {
		return device.Status{}, err
	}

	return dev.Status(), nil
}

// Reconnect reopens the port of class and clears its lost state.
func (m *Manager) Reconnect(ctx context.Context, class string) error {
	dev, err := m.Device(class)
	if err != nil {
		return err
	}

	return dev.Reconnect(ctx)
}

// AddHandler registers handlers on every current and future device.
func (m *Manager) AddHandler(handlers ...device.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, h := range handlers {
		if h != nil {
			m.handlers = append(m.handlers, h)
		}
	}
	m.devices.Range(func(_ string, dev *device.Device) bool {
		dev.AddHandler(handlers...)
		return true
	})
}

// StartLogging reads blocks from the streaming device of class in the
// background and passes each one to fn. The loop ends when the device is
// lost, StopLogging is called or the manager closes.
func (m *Manager) StartLogging(class string, fn func(codec.Result)) error {
	dev, err := m.Device(class)
	if err != nil {
		return err
	}
	if !dev.Class().Streaming() {
		return fmt.Errorf("%w: %s", device.ErrNotStreaming, class)
	}

	return m.startTask(loggingTask(class), func(ctx context.Context) bool {
		res, err := dev.ReadBlock(ctx)
		if err != nil {
			return m.keepRunning(ctx, class, err)
		}
		if fn != nil {
			fn(res)
		}

		return true
	})
}

// StopLogging stops the logging loop of class.
func (m *Manager) StopLogging(class string) error {
	return m.tasks.Cancel(loggingTask(class))
}

// StartPolling issues action on the device of class every interval and
// passes each outcome to fn. The loop ends when the device is lost,
// StopPolling is called or the manager closes.
func (m *Manager) StartPolling(class string, action string, interval time.Duration, fn func(codec.Result, error), params ...any) error {
	dev, err := m.Device(class)
	if err != nil {
		return err
	}
	if !dev.Class().HasAction(action) {
		return fmt.Errorf("%w: %s %s", catalog.ErrUnknownAction, class, action)
	}

	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return ErrManagerClosed
	}

	return m.tasks.StartInterval(pollingTask(class, action), func(ctx context.Context) bool {
		res, err := dev.IssueCommand(ctx, action, params...)
		if fn != nil && ctx.Err() == nil {
			fn(res, err)
		}
		if err != nil {
			return m.keepRunning(ctx, class, err)
		}

		return true
	}, interval, true)
}

// StopPolling stops the polling loop of class and action.
func (m *Manager) StopPolling(class string, action string) error {
	return m.tasks.Cancel(pollingTask(class, action))
}

func (m *Manager) startTask(name string, fn task.Func) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return ErrManagerClosed
	}

	return m.tasks.Start(name, fn)
}

func (m *Manager) keepRunning(ctx context.Context, class string, err error) bool {
	switch {
	case ctx.Err() != nil:
		return false
	case errors.Is(err, device.ErrDeviceLost):
		m.logger.Error("instrument: device lost, background loop stopped", "class", class)
		return false
	default:
		m.logger.Warn("instrument: background command failed", "class", class, "error", err)
		return true
	}
}

// Close stops background loops and closes every session.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.tasks.Stop()
	m.tasks.Wait()

	var errs []error
	m.sessions.Range(func(name string, sess *transport.Session) bool {
		if err := sess.Close(); err != nil {
			errs = append(errs, fmt.Errorf("instrument: close %s: %w", name, err))
		}

		return true
	})
	m.sessions.Clear()
	m.devices.Clear()

	return errors.Join(errs...)
}

func loggingTask(class string) string { return "logger:" + class }

func pollingTask(class, action string) string { return "poll:" + class + ":" + action }
