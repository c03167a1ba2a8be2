// Package simulator provides in-memory fake instruments. Each dial creates
// a net.Pipe whose far end is served by a Responder, so sessions, devices
// and the manager can be exercised without hardware.
package simulator

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-instrument/logger"
	"github.com/arloliu/go-instrument/transport"
)

// ErrDialRefused is returned by dials that were set up to fail.
var ErrDialRefused = errors.New("simulator: dial refused")

// Responder answers one question. The question excludes its terminator.
// An empty answer leaves the question unanswered.
type Responder interface {
	Respond(question string) string
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(question string) string

// Respond calls f(question).
func (f ResponderFunc) Respond(question string) string { return f(question) }

// Instrument is a fake instrument reachable through its Dial method.
type Instrument struct {
	name      string
	responder Responder
	logger    logger.Logger

	mu        sync.Mutex
	faults    []string
	questions []string
	delay     time.Duration
	failDials int
	current   *link

	dials atomic.Int32
}

var _ transport.Dialer = (*Instrument)(nil)

// New returns an instrument answering with r.
func New(name string, r Responder) *Instrument {
	return &Instrument{
		name:      name,
		responder: r,
		logger:    logger.GetLogger().With("simulator", name),
	}
}

// Name returns the instrument name.
func (in *Instrument) Name() string { return in.name }

// Dial connects a new transport to the instrument, dropping the previous
// connection.
func (in *Instrument) Dial(ctx context.Context) (transport.Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	in.dials.Add(1)

	in.mu.Lock()
	if in.failDials > 0 {
		in.failDials--
		in.mu.Unlock()

		return nil, ErrDialRefused
	}
	prev := in.current
	local, remote := net.Pipe()
	l := newLink(remote)
	in.current = l
	in.mu.Unlock()

	if prev != nil {
		prev.close()
	}

	go in.serve(l)

	return transport.NewNetTransport(local), nil
}

// Dials returns the number of dial attempts.
func (in *Instrument) Dials() int { return int(in.dials.Load()) }

// FailDials makes the next n dials fail.
func (in *Instrument) FailDials(n int) {
	in.mu.Lock()
	in.failDials = n
	in.mu.Unlock()
}

// SetDelay delays every answer by d.
func (in *Instrument) SetDelay(d time.Duration) {
	in.mu.Lock()
	in.delay = d
	in.mu.Unlock()
}

// InjectFaults answers the next len(answers) questions with answers
// instead of the responder; an empty string stays silent.
func (in *Instrument) InjectFaults(answers ...string) {
	in.mu.Lock()
	in.faults = append(in.faults, answers...)
	in.mu.Unlock()
}

// Questions returns the questions received so far.
func (in *Instrument) Questions() []string {
	in.mu.Lock()
	defer in.mu.Unlock()

	return append([]string(nil), in.questions...)
}

// Push writes unsolicited bytes to the current connection.
func (in *Instrument) Push(data string) bool {
	in.mu.Lock()
	l := in.current
	in.mu.Unlock()

	if l == nil {
		return false
	}

	return l.send([]byte(data))
}

// Close drops the current connection.
func (in *Instrument) Close() {
	in.mu.Lock()
	l := in.current
	in.current = nil
	in.mu.Unlock()

	if l != nil {
		l.close()
	}
}

func (in *Instrument) answer(q string) (string, time.Duration) {
	in.mu.Lock()
	in.questions = append(in.questions, q)
	delay := in.delay
	if len(in.faults) > 0 {
		a := in.faults[0]
		in.faults = in.faults[1:]
		in.mu.Unlock()

		return a, delay
	}
	in.mu.Unlock()

	return in.responder.Respond(q), delay
}

func (in *Instrument) serve(l *link) {
	defer l.close()

	buf := make([]byte, 256)
	var pending []byte

	for {
		n, err := l.conn.Read(buf)
		if err != nil {
			return
		}
		pending = append(pending, buf[:n]...)

		for {
			idx := bytes.IndexByte(pending, '\r')
			if idx < 0 {
				break
			}
			q := string(bytes.TrimLeft(pending[:idx], "\n"))
			pending = pending[idx+1:]

			a, delay := in.answer(q)
			in.logger.Debug("simulator: question", "question", q, "answer", a)
			if a == "" {
				continue
			}
			if delay > 0 {
				time.Sleep(delay)
			}
			if !l.send([]byte(a)) {
				return
			}
		}
		pending = bytes.TrimLeft(pending, "\n")
	}
}

// link is the instrument end of one connection. Writes go through a
// goroutine so the instrument never blocks on a reader that gave up.
type link struct {
	conn net.Conn
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func newLink(conn net.Conn) *link {
	l := &link{conn: conn, out: make(chan []byte, 64), done: make(chan struct{})}
	go l.writeLoop()

	return l
}

func (l *link) writeLoop() {
	for {
		select {
		case <-l.done:
			return
		case data := <-l.out:
			if _, err := l.conn.Write(data); err != nil {
				return
			}
		}
	}
}

func (l *link) send(data []byte) bool {
	select {
	case <-l.done:
		return false
	case l.out <- data:
		return true
	}
}

func (l *link) close() {
	l.once.Do(func() {
		close(l.done)
		_ = l.conn.Close()
	})
}
