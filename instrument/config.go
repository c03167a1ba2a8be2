package instrument

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/go-instrument/catalog"
	"github.com/arloliu/go-instrument/transport"
)

// ErrInvalidConfig is returned for deployment configurations that fail
// validation.
var ErrInvalidConfig = errors.New("instrument: invalid config")

// PortConfig describes one physical connection and the classes behind it.
type PortConfig struct {
	Name string `yaml:"name"`
	// Port is a local serial device, e.g. /dev/ttyUSB0.
	Port string `yaml:"port,omitempty"`
	// Address is a TCP serial server, e.g. 10.0.0.5:4001. Used when Port is
	// empty.
	Address string `yaml:"address,omitempty"`

	BaudRate int    `yaml:"baud_rate,omitempty"`
	DataBits int    `yaml:"data_bits,omitempty"`
	Parity   string `yaml:"parity,omitempty"`
	StopBits string `yaml:"stop_bits,omitempty"`

	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
	DrainWindow  time.Duration `yaml:"drain_window,omitempty"`
	// Flush overrides the flush policy of the classes on the port.
	Flush string `yaml:"flush,omitempty"`

	Classes []string `yaml:"classes"`
}

// Config is a deployment: which classes live on which ports, plus catalog
// overrides such as conversion factors.
type Config struct {
	LogLevel string `yaml:"log_level,omitempty"`
	// CatalogFile is an optional YAML file of class definitions applied
	// before Classes.
	CatalogFile string             `yaml:"catalog,omitempty"`
	Classes     []catalog.ClassDef `yaml:"classes,omitempty"`
	Ports       []PortConfig       `yaml:"ports"`

	MaxUnexpected int `yaml:"max_unexpected,omitempty"`
	HistorySize   int `yaml:"history_size,omitempty"`
}

// LoadConfig reads a deployment from the YAML file at path.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("instrument: %w", err)
	}
	defer f.Close()

	return DecodeConfig(f)
}

// DecodeConfig reads a deployment from r and validates it.
func DecodeConfig(r io.Reader) (*Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("instrument: decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks port names and class assignments.
func (cfg *Config) Validate() error {
	ports := make(map[string]bool, len(cfg.Ports))
	classes := make(map[string]string)

	for i, p := range cfg.Ports {
		if p.Name == "" {
			return fmt.Errorf("%w: port %d has no name", ErrInvalidConfig, i)
		}
		if ports[p.Name] {
			return fmt.Errorf("%w: duplicate port %s", ErrInvalidConfig, p.Name)
		}
		ports[p.Name] = true

		if p.Port == "" && p.Address == "" {
			return fmt.Errorf("%w: port %s needs a port or an address", ErrInvalidConfig, p.Name)
		}
		if len(p.Classes) == 0 {
			return fmt.Errorf("%w: port %s has no classes", ErrInvalidConfig, p.Name)
		}
		for _, cls := range p.Classes {
			if prev, ok := classes[cls]; ok {
				return fmt.Errorf("%w: class %s on both %s and %s", ErrInvalidConfig, cls, prev, p.Name)
			}
			classes[cls] = p.Name
		}
	}

	if cfg.MaxUnexpected < 0 || cfg.HistorySize < 0 {
		return fmt.Errorf("%w: negative max_unexpected or history_size", ErrInvalidConfig)
	}

	return nil
}

// SessionOptions converts the line settings into transport options.
func (p PortConfig) SessionOptions() ([]transport.Option, error) {
	var opts []transport.Option

	if p.BaudRate != 0 {
		opts = append(opts, transport.WithBaudRate(p.BaudRate))
	}
	if p.DataBits != 0 {
		opts = append(opts, transport.WithDataBits(p.DataBits))
	}
	if p.Parity != "" {
		parity, err := transport.ParseParity(p.Parity)
		if err != nil {
			return nil, err
		}
		opts = append(opts, transport.WithParity(parity))
	}
	if p.StopBits != "" {
		stopBits, err := transport.ParseStopBits(p.StopBits)
		if err != nil {
			return nil, err
		}
		opts = append(opts, transport.WithStopBits(stopBits))
	}
	if p.PollInterval != 0 {
		opts = append(opts, transport.WithPollInterval(p.PollInterval))
	}
	if p.DrainWindow != 0 {
		opts = append(opts, transport.WithDrainWindow(p.DrainWindow))
	}
	if p.Flush != "" {
		policy, err := transport.ParseFlushPolicy(p.Flush)
		if err != nil {
			return nil, err
		}
		opts = append(opts, transport.WithFlushPolicy(policy))
	}

	return opts, nil
}

// Dialer returns the serial or TCP dialer of the port.
func (p PortConfig) Dialer(opts ...transport.Option) (transport.Dialer, error) {
	if p.Port != "" {
		cfg, err := transport.NewConfig(opts...)
		if err != nil {
			return nil, err
		}
		mode := cfg.Mode()

		return &transport.SerialDialer{PortName: p.Port, Mode: &mode}, nil
	}
	if p.Address != "" {
		return transport.NewTCPDialer(p.Address), nil
	}

	return nil, fmt.Errorf("%w: port %s needs a port or an address", ErrInvalidConfig, p.Name)
}
