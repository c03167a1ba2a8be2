package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/arloliu/go-instrument/fault"
)

func TestSerialDialerEmptyPortName(t *testing.T) {
	conn, err := NewSerialDialer("").Dial(context.Background())
	require.ErrorIs(t, err, fault.ErrConnection)
	assert.Nil(t, conn)
}

func TestSerialDialerNilContext(t *testing.T) {
	//nolint:staticcheck // nil context is the case under test
	conn, err := NewSerialDialer("/dev/ttyUSB0").Dial(nil)
	require.Error(t, err)
	assert.Nil(t, conn)
}

func TestSerialDialerContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conn, err := NewSerialDialer("/dev/nonexistent").Dial(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, conn)
}

func TestSerialDialerNonexistentPort(t *testing.T) {
	d := &SerialDialer{
		PortName: "/dev/nonexistent-instrument",
		Mode:     &serial.Mode{BaudRate: 115200, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit},
	}

	conn, err := d.Dial(context.Background())
	require.ErrorIs(t, err, fault.ErrConnection)
	assert.Nil(t, conn)
}

func TestNetTransportReadTimeout(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	tr := NewNetTransport(local)
	defer tr.Close()

	require.NoError(t, tr.SetReadTimeout(10*time.Millisecond))
	require.Error(t, tr.SetReadTimeout(-time.Second))

	buf := make([]byte, 8)
	n, err := tr.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	go func() { _, _ = remote.Write([]byte("hi")) }()

	require.NoError(t, tr.SetReadTimeout(time.Second))
	n, err = tr.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(buf[:n]))
}

func TestNetTransportResetInputBuffer(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	tr := NewNetTransport(local)
	defer tr.Close()

	written := make(chan struct{})
	go func() {
		_, _ = remote.Write([]byte("stale"))
		close(written)
	}()
	time.Sleep(5 * time.Millisecond)

	require.NoError(t, tr.ResetInputBuffer())
	<-written
}

func TestTCPDialerFailure(t *testing.T) {
	d := NewTCPDialer("127.0.0.1:1")
	d.Timeout = 100 * time.Millisecond

	_, err := d.Dial(context.Background())
	require.ErrorIs(t, err, fault.ErrConnection)
}
