// Package device implements the per-device status machine that runs one
// question/answer cycle at a time on a shared transport session.
//
// A Device binds a catalog class to a transport.Session. IssueCommand
// encodes the action, writes it inside the session lock, waits for the
// terminated answer and validates it with the class codec. Unexpected
// answers are retried; after MaxUnexpected consecutive failures every
// further failure advances the class recovery ladder until a valid answer
// arrives or the ladder is exhausted, which marks the device lost.
//
//	dev, _ := device.New(cls, sess)
//	res, err := dev.IssueCommand(ctx, "get_position")
package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/go-instrument/catalog"
	"github.com/arloliu/go-instrument/codec"
	"github.com/arloliu/go-instrument/fault"
	"github.com/arloliu/go-instrument/internal/pool"
	"github.com/arloliu/go-instrument/internal/ring"
	"github.com/arloliu/go-instrument/logger"
	"github.com/arloliu/go-instrument/pattern"
	"github.com/arloliu/go-instrument/recovery"
	"github.com/arloliu/go-instrument/transport"
)

var (
	// ErrBusy is returned when a command is issued while another command of
	// the same device is in progress.
	ErrBusy = errors.New("device: busy")
	// ErrDeviceLost is returned by devices whose recovery ladder was
	// exhausted, until Reconnect succeeds.
	ErrDeviceLost = errors.New("device: lost, reconnect required")
	// ErrNilSession is returned when New is called without a session.
	ErrNilSession = errors.New("device: nil session")
	// ErrNotStreaming is returned by ReadBlock on question/answer classes.
	ErrNotStreaming = errors.New("device: class does not stream")
)

// Event reports a finished command to handlers.
type Event struct {
	Class  string
	Action string
	Result codec.Result
	// Err is nil on success.
	Err error
}

// Handler is called after every command, successful or not.
type Handler func(ev Event)

// Device is the status machine of one device class on a session.
type Device struct {
	class  *catalog.Class
	sess   *transport.Session
	cfg    *Config
	logger logger.Logger

	executor recovery.Executor
	metrics  Metrics

	mu         sync.Mutex
	status     Status
	ctrl       *recovery.Controller
	history    *ring.Ring[CycleStat]
	handlers   []Handler
	lastResult codec.Result
}

// New creates an idle device of class cls on sess. The session is shared;
// opening and closing it is up to the caller.
func New(cls *catalog.Class, sess *transport.Session, opts ...Option) (*Device, error) {
	if cls == nil {
		return nil, fmt.Errorf("device: %w: nil class", catalog.ErrUnknownClass)
	}
	if sess == nil {
		return nil, ErrNilSession
	}

	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}
	if !cfg.maxUnexpectedSet && cls.MaxUnexpected() > 0 {
		cfg.maxUnexpected = cls.MaxUnexpected()
	}

	plan := cfg.plan
	if len(plan) == 0 {
		plan = cls.Plan()
	}
	ctrl, err := recovery.NewController(plan)
	if err != nil {
		return nil, err
	}

	d := &Device{
		class:   cls,
		sess:    sess,
		cfg:     cfg,
		logger:  cfg.GetLogger().With("class", cls.Name()),
		ctrl:    ctrl,
		history: ring.New[CycleStat](cfg.HistorySize()),
	}
	d.status = Status{Class: cls.Name(), MaxUnexpected: cfg.MaxUnexpected()}

	d.executor = cfg.executor
	if d.executor == nil {
		d.executor = &classExecutor{dev: d}
	}

	return d, nil
}

// Class returns the device class.
func (d *Device) Class() *catalog.Class { return d.class }

// Name returns the class name.
func (d *Device) Name() string { return d.class.Name() }

// Session returns the session the device runs on.
func (d *Device) Session() *transport.Session { return d.sess }

// Metrics returns the device counters.
func (d *Device) Metrics() *Metrics { return &d.metrics }

// AddHandler registers handlers called after each command.
func (d *Device) AddHandler(handlers ...Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, h := range handlers {
		if h != nil {
			d.handlers = append(d.handlers, h)
		}
	}
}

// Status returns a deep copy of the device status.
func (d *Device) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.status
	s.History = d.history.Items()
	s.Recovery = d.ctrl.State()
	s.Handlers = len(d.handlers)
	s.LastResult = d.lastResult

	return s.Clone()
}

// Open opens the underlying session.
func (d *Device) Open(ctx context.Context) error {
	return d.sess.Open(ctx)
}

// Reconnect reopens the session and resets the status record, clearing a
// lost state.
func (d *Device) Reconnect(ctx context.Context) error {
	err := d.sess.Do(ctx, func(ctx context.Context) error {
		return d.sess.Reopen(ctx)
	})

	d.mu.Lock()
	defer d.mu.Unlock()

	if err != nil {
		d.status.Low = LowError
		d.status.LastError = err.Error()

		return err
	}

	d.ctrl.Reset()
	d.history.Reset()
	d.lastResult = codec.Result{}
	d.status = Status{Class: d.class.Name(), MaxUnexpected: d.cfg.MaxUnexpected()}
	d.metrics.setRecoveryLevel(0)
	d.logger.Info("device: reconnected")

	return nil
}

// IssueCommand runs action with params and returns the decoded answer.
//
// The command must be accepted by an idle device, otherwise ErrBusy is
// returned. Unexpected answers are absorbed by retries and the recovery
// ladder; the returned error is either a caller error (unknown action,
// parameter out of range), the context error, or a *fault.CommandError of
// kind fault.ErrRecoveryExhausted or fault.ErrConnection.
func (d *Device) IssueCommand(ctx context.Context, action string, params ...any) (codec.Result, error) {
	req, err := d.class.Request(action, params...)
	if err != nil {
		return codec.Result{}, err
	}

	wire, err := d.class.Codec().Encode(req)
	if err != nil {
		return codec.Result{}, err
	}

	return d.run(ctx, req, wire)
}

// ReadBlock waits for the next block pushed by a streaming device.
func (d *Device) ReadBlock(ctx context.Context) (codec.Result, error) {
	if !d.class.Streaming() {
		return codec.Result{}, fmt.Errorf("%w: %s", ErrNotStreaming, d.class.Name())
	}

	req, err := d.class.Request(catalog.ActionBlock)
	if err != nil {
		return codec.Result{}, err
	}

	return d.run(ctx, req, nil)
}

func (d *Device) run(ctx context.Context, req codec.Request, wire []byte) (codec.Result, error) {
	if err := d.accept(req.Action); err != nil {
		return codec.Result{}, err
	}

	var res codec.Result
	err := d.sess.Do(ctx, func(ctx context.Context) error {
		var err error
		res, err = d.loop(ctx, req, wire)

		return err
	})

	d.finish(req, res, err)

	return res, err
}

// accept moves an idle device to ToInitiate.
func (d *Device) accept(action string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.status.Low == LowLost {
		return fmt.Errorf("%w: %s", ErrDeviceLost, d.class.Name())
	}
	if d.status.High != HighIdle {
		return fmt.Errorf("%w: %s is running %s", ErrBusy, d.class.Name(), d.status.PendingAction)
	}

	d.status.High = HighToInitiate
	d.status.PendingAction = action

	return nil
}

func (d *Device) finish(req codec.Request, res codec.Result, err error) {
	d.mu.Lock()
	d.status.High = HighIdle
	d.status.PendingAction = ""
	if err == nil {
		d.lastResult = res
	} else {
		d.status.LastError = err.Error()
	}
	handlers := append([]Handler(nil), d.handlers...)
	d.mu.Unlock()

	ev := Event{Class: d.class.Name(), Action: req.Action, Result: res, Err: err}
	for _, h := range handlers {
		h(ev)
	}
}

// loop runs cycles until one succeeds or the failure must be reported.
// It runs with the session lock held.
func (d *Device) loop(ctx context.Context, req codec.Request, wire []byte) (codec.Result, error) {
	for {
		res, err := d.cycle(ctx, req, wire)
		if err == nil {
			d.succeeded()
			return res, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			d.setLow(LowFree)
			return codec.Result{}, ctxErr
		}

		step, escalate := d.failed(err)
		if !escalate {
			continue
		}
		if step.Action == recovery.ActionAbort || d.ctrlExhausted() {
			return codec.Result{}, d.exhausted(err)
		}

		if err := d.recover(ctx, step); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				d.setLow(LowFree)
				return codec.Result{}, ctxErr
			}
			if step.Action == recovery.ActionReopenPort {
				return codec.Result{}, d.connectionLost(err)
			}
			d.logger.Warn("device: recovery action failed", "action", string(step.Action), "error", err)
		}
	}
}

// cycle runs one question/answer exchange. A nil wire listens for a
// pushed block.
func (d *Device) cycle(ctx context.Context, req codec.Request, wire []byte) (codec.Result, error) {
	maxWait := d.class.Timeout(req.Action)
	question := string(trimTerminator(wire))
	expected := d.patternText(req.Pattern)
	start := time.Now()

	d.mu.Lock()
	d.status.LastCommand = start
	d.status.MaxAllowed = maxWait
	d.status.LastQuestion = question
	d.status.ExpectedPattern = expected
	if wire == nil {
		d.status.Low, d.status.High = LowNotFromQA, HighWaiting
	} else {
		d.status.Low, d.status.High = LowBusy, HighChecking
	}
	level := d.ctrl.Level()
	d.mu.Unlock()

	res, err := d.exchange(ctx, req, wire, maxWait, func() {
		d.mu.Lock()
		d.status.High = HighWaiting
		d.mu.Unlock()
	})
	if err != nil {
		if cmdErr, ok := fault.AsCommandError(err); ok {
			cmdErr.Question = question
			cmdErr.Pattern = expected
			cmdErr.Level = level
		}
	}

	stat := CycleStat{
		Action:   req.Action,
		Question: question,
		Start:    start,
		Elapsed:  time.Since(start),
		Outcome:  outcomeOf(err),
		Level:    level,
	}
	d.metrics.record(stat.Outcome, stat.Elapsed)

	d.mu.Lock()
	d.history.Push(stat)
	d.mu.Unlock()

	if err != nil {
		d.logger.Warn("device: unexpected answer", "action", req.Action, "outcome", stat.Outcome.String(), "error", err)
	} else {
		d.logger.Debug("device: answer", "action", req.Action, "elapsed", stat.Elapsed)
	}

	return res, err
}

// exchange writes wire, waits for the terminated answer and decodes it.
// Failures are returned as *fault.CommandError except context errors.
func (d *Device) exchange(ctx context.Context, req codec.Request, wire []byte, maxWait time.Duration, sent func()) (codec.Result, error) {
	c := d.class.Codec()

	if wire != nil {
		if err := d.sess.SendQuestion(ctx, wire); err != nil {
			if ctx.Err() != nil {
				return codec.Result{}, ctx.Err()
			}
			return codec.Result{}, d.commandError(fault.KindOf(err), nil, err)
		}
	}
	if sent != nil {
		sent()
	}

	ans, err := d.sess.AwaitAnswer(ctx, c.Terminator(), maxWait)
	if err != nil {
		if ctx.Err() != nil {
			return codec.Result{}, ctx.Err()
		}
		return codec.Result{}, d.commandError(fault.ErrConnection, ans.Data, err)
	}

	if ans.Status != transport.AnswerMatched {
		return codec.Result{}, d.commandError(fault.ErrTimeout, ans.Data,
			fmt.Errorf("%s after %s", ans.Status, ans.Elapsed.Round(time.Millisecond)))
	}

	d.setLow(LowAnswerReceived)

	res, err := c.Decode(req, ans.Data)
	if err != nil {
		if cmdErr, ok := fault.AsCommandError(err); ok {
			cmdErr.Class = d.class.Name()
			if len(cmdErr.Raw) == 0 {
				cmdErr.Raw = append([]byte(nil), ans.Data...)
			}
			return codec.Result{}, cmdErr
		}
		return codec.Result{}, d.commandError(fault.ErrParse, ans.Data, err)
	}

	return res, nil
}

func (d *Device) commandError(kind error, raw []byte, cause error) *fault.CommandError {
	if kind == nil {
		kind = fault.ErrConnection
	}

	return &fault.CommandError{
		Kind:  kind,
		Class: d.class.Name(),
		Raw:   append([]byte(nil), raw...),
		Err:   cause,
	}
}

func (d *Device) succeeded() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ctrl.Level() > 0 {
		d.logger.Info("device: recovered", "level", d.ctrl.Level())
	}

	d.status.Low = LowFree
	d.status.Unexpected = 0
	d.status.LastError = ""
	d.ctrl.Reset()
	d.metrics.setRecoveryLevel(0)
}

// failed counts an unexpected answer. Outside recovery it escalates once
// the count reaches the maximum; inside recovery every failure escalates.
func (d *Device) failed(err error) (recovery.Step, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.status.Low = LowFree
	d.status.LastError = err.Error()

	if d.ctrl.Level() == 0 {
		d.status.Unexpected++
		if d.status.Unexpected < d.status.MaxUnexpected {
			return recovery.Step{}, false
		}
		d.status.Unexpected = 0
	}

	step, nextErr := d.ctrl.Next()
	d.metrics.setRecoveryLevel(d.ctrl.Level())
	if nextErr != nil {
		return step, true
	}

	d.logger.Info("device: recovery", "level", d.ctrl.Level(), "action", step.String())

	return step, true
}

func (d *Device) ctrlExhausted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.ctrl.Exhausted()
}

func (d *Device) exhausted(last error) error {
	d.metrics.incExhaustedCount()

	d.mu.Lock()
	d.status.Low = LowLost
	level := d.ctrl.Level()
	d.mu.Unlock()

	cmdErr := &fault.CommandError{Kind: fault.ErrRecoveryExhausted, Class: d.class.Name(), Level: level, Err: last}
	if prev, ok := fault.AsCommandError(last); ok {
		cmdErr.Question = prev.Question
		cmdErr.Raw = prev.Raw
		cmdErr.Pattern = prev.Pattern
	}

	d.logger.Error("device: recovery exhausted", "level", level, "error", last)

	return cmdErr
}

func (d *Device) connectionLost(err error) error {
	d.mu.Lock()
	d.status.Low = LowError
	level := d.ctrl.Level()
	d.mu.Unlock()

	d.logger.Error("device: connection lost", "error", err)

	if cmdErr, ok := fault.AsCommandError(err); ok {
		cmdErr.Level = level
		return cmdErr
	}

	return &fault.CommandError{Kind: fault.ErrConnection, Class: d.class.Name(), Level: level, Err: err}
}

// recover runs step and waits its settle time, holding the session lock.
func (d *Device) recover(ctx context.Context, step recovery.Step) error {
	d.metrics.incRecoveryActionCount()

	if err := d.executor.Execute(ctx, step); err != nil {
		return err
	}

	return pool.Sleep(ctx, step.Settle)
}

func (d *Device) setLow(s LowState) {
	d.mu.Lock()
	d.status.Low = s
	d.mu.Unlock()
}

func (d *Device) patternText(p *pattern.Pattern) string {
	if p != nil {
		return p.String()
	}
	if d.class.Format() == catalog.FormatASCII {
		return codec.SuccessPattern(d.class.Prefix()).String()
	}

	return ""
}

func trimTerminator(wire []byte) []byte {
	for len(wire) > 0 && (wire[len(wire)-1] == '\r' || wire[len(wire)-1] == '\n') {
		wire = wire[:len(wire)-1]
	}

	return wire
}
