package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-instrument/fault"
	"github.com/arloliu/go-instrument/logger"
)

var (
	// ErrSessionClosed is returned when using or closing a session that is
	// not open.
	ErrSessionClosed = errors.New("transport: session closed")
	// ErrNilDialer is returned by NewSession for a nil dialer.
	ErrNilDialer = errors.New("transport: dialer is nil")
)

const readChunkSize = 512

// AnswerStatus is the outcome of AwaitAnswer.
type AnswerStatus uint8

const (
	// AnswerMatched means the terminator was seen.
	AnswerMatched AnswerStatus = iota
	// AnswerTimeout means nothing arrived within the max wait.
	AnswerTimeout
	// AnswerPartial means bytes arrived but no terminator within the max wait.
	AnswerPartial
)

func (s AnswerStatus) String() string {
	switch s {
	case AnswerMatched:
		return "matched"
	case AnswerTimeout:
		return "timeout"
	case AnswerPartial:
		return "partial"
	default:
		return "unknown"
	}
}

// Answer is the raw result of awaiting an answer.
type Answer struct {
	Status AnswerStatus
	// Data holds the answer up to and including the terminator, or the
	// bytes received so far for timeouts.
	Data []byte
	// Elapsed is the time spent waiting.
	Elapsed time.Duration
}

// Session is a question/answer channel over one Transport.
//
// Command cycles must run inside Do, which holds the session lock, so at
// most one cycle is in flight per session. Open, Close and Reopen may be
// called at any time.
type Session struct {
	name   string
	dialer Dialer
	cfg    *Config
	logger logger.Logger

	state atomicOpState
	// lock is a one-slot semaphore so waiting for it honours a context.
	lock chan struct{}

	mu    sync.Mutex
	conn  Transport
	stale []byte

	// dirty is set when a cycle was abandoned and late bytes may follow.
	dirty atomic.Bool
}

// NewSession creates a closed session named name that dials through dialer.
func NewSession(name string, dialer Dialer, opts ...Option) (*Session, error) {
	if dialer == nil {
		return nil, ErrNilDialer
	}

	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	return &Session{
		name:   name,
		dialer: dialer,
		cfg:    cfg,
		logger: cfg.GetLogger().With("session", name),
		lock:   make(chan struct{}, 1),
	}, nil
}

// NewSerialSession creates a session on a local serial port using the line
// mode configured by opts.
func NewSerialSession(portName string, opts ...Option) (*Session, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	mode := cfg.Mode()

	return NewSession(portName, &SerialDialer{PortName: portName, Mode: &mode}, opts...)
}

// Name returns the session name.
func (s *Session) Name() string { return s.name }

// Config returns the session configuration.
func (s *Session) Config() *Config { return s.cfg }

// IsOpen reports whether the session holds an open transport.
func (s *Session) IsOpen() bool { return s.state.isOpened() }

// Open dials the transport. Opening an open session is a no-op.
// Dial failures wrap fault.ErrConnection.
func (s *Session) Open(ctx context.Context) error {
	if s.state.isOpened() {
		return nil
	}
	if !s.state.toOpening() {
		return fmt.Errorf("%w: transport: session %s is %s", fault.ErrConnection, s.name, s.state.get())
	}

	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		s.state.set(stateClosed)
		s.logger.Error("transport: open failed", "error", err)

		if errors.Is(err, fault.ErrConnection) {
			return err
		}

		return fmt.Errorf("%w: transport: open %s: %w", fault.ErrConnection, s.name, err)
	}

	if err := conn.SetReadTimeout(s.cfg.PollInterval()); err != nil {
		_ = conn.Close()
		s.state.set(stateClosed)

		return fmt.Errorf("%w: transport: set read timeout on %s: %w", fault.ErrConnection, s.name, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.stale = nil
	s.mu.Unlock()
	s.dirty.Store(false)

	s.state.toOpened()
	s.logger.Info("transport: session opened")

	return nil
}

// Close closes the transport. Closing a closed session returns
// ErrSessionClosed.
func (s *Session) Close() error {
	if !s.state.toClosing() {
		return ErrSessionClosed
	}
	defer s.state.toClosed()

	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.stale = nil
	s.mu.Unlock()

	s.logger.Info("transport: session closed")

	if conn == nil {
		return nil
	}

	return conn.Close()
}

// Reopen closes the transport if open and dials it again.
func (s *Session) Reopen(ctx context.Context) error {
	if err := s.Close(); err != nil && !errors.Is(err, ErrSessionClosed) {
		s.logger.Warn("transport: close before reopen failed", "error", err)
	}

	return s.Open(ctx)
}

// Do runs fn while holding the session lock. Waiting for the lock honours
// ctx.
func (s *Session) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case s.lock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.lock }()

	return fn(ctx)
}

func (s *Session) transport() (Transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrConnection, ErrSessionClosed)
	}

	return s.conn, nil
}

// SendQuestion flushes stale input according to the flush policy and writes
// wire. A dirty session is always drained. Write failures wrap
// fault.ErrWrite.
func (s *Session) SendQuestion(ctx context.Context, wire []byte) error {
	conn, err := s.transport()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	policy := s.cfg.FlushPolicy()
	if s.dirty.Swap(false) && policy == FlushNone {
		policy = FlushReadThenReset
	}
	if err := s.flush(conn, policy); err != nil {
		s.logger.Warn("transport: flush failed", "error", err)
	}

	for written := 0; written < len(wire); {
		n, err := conn.Write(wire[written:])
		written += n

		if err != nil {
			s.dirty.Store(true)
			return fmt.Errorf("%w: transport: write %q: %w", fault.ErrWrite, wire, err)
		}
	}

	s.logger.Debug("transport: question sent", "wire", string(wire))

	return nil
}

// Flush discards pending input with the given policy.
func (s *Session) Flush(policy FlushPolicy) error {
	conn, err := s.transport()
	if err != nil {
		return err
	}

	return s.flush(conn, policy)
}

func (s *Session) flush(conn Transport, policy FlushPolicy) error {
	s.mu.Lock()
	dropped := len(s.stale)
	if policy != FlushNone {
		s.stale = nil
	}
	s.mu.Unlock()

	switch policy {
	case FlushReadThenReset:
		n, err := s.drainUntilSilence(conn)
		dropped += n
		if err != nil {
			return err
		}
		if err := conn.ResetInputBuffer(); err != nil {
			return err
		}
	case FlushResetOnly:
		if err := conn.ResetInputBuffer(); err != nil {
			return err
		}
	case FlushNone:
		return nil
	}

	if dropped > 0 {
		s.logger.Debug("transport: stale input discarded", "bytes", dropped)
	}

	return nil
}

// drainUntilSilence reads and discards bytes until no byte arrives within
// the drain window.
func (s *Session) drainUntilSilence(conn Transport) (int, error) {
	if err := conn.SetReadTimeout(s.cfg.DrainWindow()); err != nil {
		return 0, err
	}
	defer func() { _ = conn.SetReadTimeout(s.cfg.PollInterval()) }()

	buf := make([]byte, readChunkSize)
	total := 0

	for range maxDrainRounds {
		n, err := conn.Read(buf)
		total += n

		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
	}

	s.logger.Warn("transport: line did not go silent while draining", "bytes", total)

	return total, nil
}

// AwaitAnswer polls the transport until terminator is seen or maxWait
// elapses. Bytes after the terminator are kept and prepended to the next
// answer. A timeout or partial answer, or cancellation of ctx, marks the
// session dirty so late bytes are drained before the next question.
//
// Only read failures and cancellation return an error; timeouts are
// reported through Answer.Status.
func (s *Session) AwaitAnswer(ctx context.Context, terminator []byte, maxWait time.Duration) (Answer, error) {
	conn, err := s.transport()
	if err != nil {
		return Answer{}, err
	}

	start := time.Now()
	deadline := start.Add(maxWait)

	s.mu.Lock()
	buf := s.stale
	s.stale = nil
	s.mu.Unlock()

	chunk := make([]byte, readChunkSize)
	searchFrom := 0

	// The last read before the deadline runs with a shortened timeout so the
	// cycle never outlives maxWait.
	poll := s.cfg.PollInterval()
	readTimeout := poll
	defer func() {
		if readTimeout != poll {
			_ = conn.SetReadTimeout(poll)
		}
	}()

	for {
		if len(terminator) > 0 {
			if idx := bytes.Index(buf[searchFrom:], terminator); idx >= 0 {
				end := searchFrom + idx + len(terminator)
				s.keepStale(buf[end:])

				return Answer{Status: AnswerMatched, Data: buf[:end:end], Elapsed: time.Since(start)}, nil
			}
			searchFrom = max(0, len(buf)-len(terminator)+1)
		}

		if err := ctx.Err(); err != nil {
			s.dirty.Store(true)
			return s.unmatched(buf, start), err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			s.dirty.Store(true)
			ans := s.unmatched(buf, start)
			s.logger.Debug("transport: answer not terminated", "status", ans.Status.String(), "bytes", len(buf))

			return ans, nil
		}

		if want := min(poll, max(remaining, time.Millisecond)); want != readTimeout {
			if err := conn.SetReadTimeout(want); err != nil {
				s.dirty.Store(true)
				return s.unmatched(buf, start), fmt.Errorf("%w: transport: set read timeout: %w", fault.ErrConnection, err)
			}
			readTimeout = want
		}

		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			s.dirty.Store(true)
			return s.unmatched(buf, start), fmt.Errorf("%w: transport: read: %w", fault.ErrConnection, err)
		}
	}
}

func (s *Session) unmatched(buf []byte, start time.Time) Answer {
	status := AnswerTimeout
	if len(buf) > 0 {
		status = AnswerPartial
	}

	return Answer{Status: status, Data: buf, Elapsed: time.Since(start)}
}

func (s *Session) keepStale(rest []byte) {
	if len(rest) == 0 {
		return
	}

	s.mu.Lock()
	s.stale = append([]byte(nil), rest...)
	s.mu.Unlock()
}

// StaleLen returns the number of buffered bytes received after the last
// answer's terminator.
func (s *Session) StaleLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.stale)
}

// Dirty reports whether an abandoned cycle left late bytes to drain.
func (s *Session) Dirty() bool { return s.dirty.Load() }
