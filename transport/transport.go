package transport

import (
	"context"
	"io"
	"time"
)

// Transport is an established byte stream to an instrument.
//
// Read must return (0, nil) when the read timeout set by SetReadTimeout
// elapses without data, as serial ports do. ResetInputBuffer discards
// bytes received but not yet read.
type Transport interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// Dialer opens a Transport.
type Dialer interface {
	// Dial creates a connected Transport. It should respect cancellation of ctx.
	Dial(ctx context.Context) (Transport, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Transport, error)

// Dial calls f(ctx).
func (f DialerFunc) Dial(ctx context.Context) (Transport, error) {
	return f(ctx)
}
