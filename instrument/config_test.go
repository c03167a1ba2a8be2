package instrument

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/arloliu/go-instrument/transport"
)

const deploymentYAML = `
log_level: debug
max_unexpected: 4
history_size: 16
classes:
  - name: HT
    commands:
      get_temperature:
        factor: 10
ports:
  - name: head
    port: /dev/ttyUSB0
    baud_rate: 19200
    parity: E
    stop_bits: "2"
    poll_interval: 50ms
    drain_window: 10ms
    classes: [HT, TR, SB]
  - name: chiller
    address: 10.0.0.5:4001
    flush: reset-only
    classes: [TETECH1]
`

func TestDecodeConfig(t *testing.T) {
	cfg, err := DecodeConfig(strings.NewReader(deploymentYAML))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 4, cfg.MaxUnexpected)
	assert.Equal(t, 16, cfg.HistorySize)
	require.Len(t, cfg.Classes, 1)
	assert.InDelta(t, 10.0, cfg.Classes[0].Commands["get_temperature"].Factor, 0)

	require.Len(t, cfg.Ports, 2)
	head := cfg.Ports[0]
	assert.Equal(t, "/dev/ttyUSB0", head.Port)
	assert.Equal(t, 19200, head.BaudRate)
	assert.Equal(t, 50*time.Millisecond, head.PollInterval)
	assert.Equal(t, []string{"HT", "TR", "SB"}, head.Classes)

	opts, err := head.SessionOptions()
	require.NoError(t, err)
	tcfg, err := transport.NewConfig(opts...)
	require.NoError(t, err)
	assert.Equal(t, 19200, tcfg.Mode().BaudRate)
	assert.Equal(t, serial.EvenParity, tcfg.Mode().Parity)
	assert.Equal(t, serial.TwoStopBits, tcfg.Mode().StopBits)
	assert.Equal(t, 10*time.Millisecond, tcfg.DrainWindow())

	dialer, err := head.Dialer(opts...)
	require.NoError(t, err)
	sd, ok := dialer.(*transport.SerialDialer)
	require.True(t, ok)
	assert.Equal(t, "/dev/ttyUSB0", sd.PortName)
	assert.Equal(t, 19200, sd.Mode.BaudRate)

	chiller := cfg.Ports[1]
	opts, err = chiller.SessionOptions()
	require.NoError(t, err)
	tcfg, err = transport.NewConfig(opts...)
	require.NoError(t, err)
	assert.Equal(t, transport.FlushResetOnly, tcfg.FlushPolicy())

	dialer, err = chiller.Dialer(opts...)
	require.NoError(t, err)
	assert.IsType(t, &transport.NetDialer{}, dialer)
}

func TestDecodeConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "ports: []\ncolour: blue\n"},
		{"nameless port", "ports:\n  - port: /dev/ttyS0\n    classes: [HT]\n"},
		{"duplicate port", "ports:\n  - {name: a, port: /dev/ttyS0, classes: [HT]}\n  - {name: a, port: /dev/ttyS1, classes: [TR]}\n"},
		{"no endpoint", "ports:\n  - {name: a, classes: [HT]}\n"},
		{"no classes", "ports:\n  - {name: a, port: /dev/ttyS0}\n"},
		{"class on two ports", "ports:\n  - {name: a, port: /dev/ttyS0, classes: [HT]}\n  - {name: b, port: /dev/ttyS1, classes: [HT]}\n"},
		{"negative max", "max_unexpected: -1\nports: []\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeConfig(strings.NewReader(tt.yaml))
			require.Error(t, err)
		})
	}

	_, err := DecodeConfig(strings.NewReader("ports:\n  - {name: a, classes: [HT]}\n"))
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSessionOptionsErrors(t *testing.T) {
	_, err := PortConfig{Parity: "Z"}.SessionOptions()
	require.Error(t, err)

	_, err = PortConfig{StopBits: "3"}.SessionOptions()
	require.Error(t, err)

	_, err = PortConfig{Flush: "sometimes"}.SessionOptions()
	require.Error(t, err)

	opts, err := PortConfig{BaudRate: -1}.SessionOptions()
	require.NoError(t, err)
	_, err = transport.NewConfig(opts...)
	require.Error(t, err)

	_, err = PortConfig{Name: "x"}.Dialer()
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deployment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(deploymentYAML), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Ports, 2)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
