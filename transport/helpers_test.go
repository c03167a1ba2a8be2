package transport

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// pipeDialer hands out the local end of a fresh net.Pipe on each dial and
// publishes the remote end on remotes.
type pipeDialer struct {
	remotes chan net.Conn
}

func newPipeDialer() *pipeDialer {
	return &pipeDialer{remotes: make(chan net.Conn, 4)}
}

func (d *pipeDialer) Dial(_ context.Context) (Transport, error) {
	local, remote := net.Pipe()
	d.remotes <- remote

	return NewNetTransport(local), nil
}

func (d *pipeDialer) remote(t *testing.T) net.Conn {
	t.Helper()

	select {
	case c := <-d.remotes:
		t.Cleanup(func() { _ = c.Close() })
		return c
	case <-time.After(time.Second):
		t.Fatal("no connection dialed")
		return nil
	}
}

func testOptions(extra ...Option) []Option {
	return append([]Option{
		WithPollInterval(5 * time.Millisecond),
		WithDrainWindow(5 * time.Millisecond),
	}, extra...)
}

func newPipeSession(t *testing.T, opts ...Option) (*Session, net.Conn) {
	t.Helper()

	dialer := newPipeDialer()
	sess, err := NewSession("pipe", dialer, testOptions(opts...)...)
	require.NoError(t, err)
	require.NoError(t, sess.Open(context.Background()))
	t.Cleanup(func() { _ = sess.Close() })

	return sess, dialer.remote(t)
}

// readQuestion reads one CR terminated question from the remote end.
func readQuestion(conn net.Conn) (string, error) {
	var q []byte
	b := make([]byte, 1)
	for {
		if _, err := io.ReadFull(conn, b); err != nil {
			return string(q), err
		}
		q = append(q, b[0])
		if b[0] == '\r' {
			return string(q), nil
		}
	}
}

// respond answers every question on conn with answer(question) until conn closes.
func respond(conn net.Conn, answer func(q string) string) {
	go func() {
		for {
			q, err := readQuestion(conn)
			if err != nil {
				return
			}
			if a := answer(q); a != "" {
				if _, err := conn.Write([]byte(a)); err != nil {
					return
				}
			}
		}
	}()
}
