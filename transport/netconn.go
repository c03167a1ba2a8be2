package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-instrument/fault"
)

// resetProbe is how long ResetInputBuffer waits for pending bytes.
const resetProbe = time.Millisecond

// NetTransport adapts a net.Conn, such as a TCP serial server or one end of
// net.Pipe, to Transport. Read deadline expiry is reported as (0, nil).
type NetTransport struct {
	conn        net.Conn
	readTimeout atomic.Int64
}

var _ Transport = (*NetTransport)(nil)

// NewNetTransport wraps conn. Reads block until data arrives until a read
// timeout is set.
func NewNetTransport(conn net.Conn) *NetTransport {
	return &NetTransport{conn: conn}
}

func (t *NetTransport) Read(p []byte) (int, error) {
	var deadline time.Time
	if d := time.Duration(t.readTimeout.Load()); d > 0 {
		deadline = time.Now().Add(d)
	}
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return 0, err
	}

	n, err := t.conn.Read(p)
	if isTimeout(err) {
		return n, nil
	}

	return n, err
}

func (t *NetTransport) Write(p []byte) (int, error) {
	return t.conn.Write(p)
}

func (t *NetTransport) Close() error {
	return t.conn.Close()
}

// SetReadTimeout sets the per-read timeout, zero blocks indefinitely.
func (t *NetTransport) SetReadTimeout(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("transport: negative read timeout %s", d)
	}
	t.readTimeout.Store(int64(d))

	return nil
}

// ResetInputBuffer discards bytes that are already pending on the
// connection. Bytes still in flight are not affected.
func (t *NetTransport) ResetInputBuffer() error {
	buf := make([]byte, 256)
	for {
		if err := t.conn.SetReadDeadline(time.Now().Add(resetProbe)); err != nil {
			return err
		}

		n, err := t.conn.Read(buf)
		if isTimeout(err) || (err == nil && n == 0) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}

// NetDialer dials a TCP serial server.
type NetDialer struct {
	Network string
	Address string
	Timeout time.Duration
}

var _ Dialer = (*NetDialer)(nil)

// NewTCPDialer returns a dialer for a "host:port" serial server.
func NewTCPDialer(address string) *NetDialer {
	return &NetDialer{Network: "tcp", Address: address, Timeout: DefaultConnectTimeout}
}

func (d *NetDialer) Dial(ctx context.Context) (Transport, error) {
	dialer := net.Dialer{Timeout: d.Timeout}

	conn, err := dialer.DialContext(ctx, d.Network, d.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: transport: dial %s: %w", fault.ErrConnection, d.Address, err)
	}

	return NewNetTransport(conn), nil
}
