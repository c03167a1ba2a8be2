package transport

import (
	"context"
	"errors"
	"fmt"

	"go.bug.st/serial"

	"github.com/arloliu/go-instrument/fault"
)

// SerialDialer opens a local serial port.
type SerialDialer struct {
	PortName string
	// Mode is the line configuration, 9600-8-N-1 when nil.
	Mode *serial.Mode
}

var _ Dialer = (*SerialDialer)(nil)

// NewSerialDialer returns a dialer for portName with the default mode.
func NewSerialDialer(portName string) *SerialDialer {
	return &SerialDialer{PortName: portName}
}

// DefaultMode returns the 9600-8-N-1 line configuration.
func DefaultMode() serial.Mode {
	return serial.Mode{
		BaudRate: DefaultBaudRate,
		DataBits: DefaultDataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// Dial opens the port. Failures wrap fault.ErrConnection.
func (d *SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("transport: context is nil")
	}
	if d.PortName == "" {
		return nil, fmt.Errorf("%w: transport: serial port name is required", fault.ErrConnection)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := DefaultMode()
	if d.Mode != nil {
		mode = *d.Mode
	}

	port, err := serial.Open(d.PortName, &mode)
	if err != nil {
		return nil, fmt.Errorf("%w: transport: open serial port %s: %w", fault.ErrConnection, d.PortName, err)
	}

	return port, nil
}
