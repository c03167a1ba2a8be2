package device

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-instrument/catalog"
	"github.com/arloliu/go-instrument/internal/simulator"
	"github.com/arloliu/go-instrument/recovery"
	"github.com/arloliu/go-instrument/transport"
)

const testTimeout = 50 * time.Millisecond

func fastPlan() recovery.Plan {
	return recovery.Plan{
		{Action: recovery.ActionRetryCommand, Retries: 2},
		{Action: recovery.ActionCheckCommunication, Retries: 1},
		{Action: recovery.ActionSoftReset, Retries: 1, Settle: time.Millisecond},
		{Action: recovery.ActionReopenPort, Retries: 1},
		{Action: recovery.ActionAbort},
	}
}

// testClass compiles the builtin class name with short timeouts and plan.
func testClass(t *testing.T, name string, plan recovery.Plan) *catalog.Class {
	t.Helper()

	cls, err := catalog.Builtin().Class(name)
	require.NoError(t, err)

	def := cls.Def()
	for action, cmd := range def.Commands {
		cmd.Timeout = testTimeout
		def.Commands[action] = cmd
	}
	def.Recovery = plan

	out, err := catalog.Compile(def)
	require.NoError(t, err)

	return out
}

func newSession(t *testing.T, in *simulator.Instrument) *transport.Session {
	t.Helper()

	sess, err := transport.NewSession(in.Name(), in,
		transport.WithPollInterval(2*time.Millisecond),
		transport.WithDrainWindow(2*time.Millisecond),
	)
	require.NoError(t, err)
	require.NoError(t, sess.Open(context.Background()))
	t.Cleanup(func() {
		_ = sess.Close()
		in.Close()
	})

	return sess
}

func newDevice(t *testing.T, cls *catalog.Class, sess *transport.Session, opts ...Option) *Device {
	t.Helper()

	dev, err := New(cls, sess, opts...)
	require.NoError(t, err)

	return dev
}

// newTracker returns a tracker device on its own simulated head sensor.
func newTracker(t *testing.T, opts ...Option) (*Device, *simulator.Instrument, *simulator.HeadSensor) {
	t.Helper()

	hs := simulator.NewHeadSensor()
	in := simulator.New("head", hs)
	dev := newDevice(t, testClass(t, "TR", fastPlan()), newSession(t, in), opts...)

	return dev, in, hs
}

func outcomes(s Status) []Outcome {
	out := make([]Outcome, 0, len(s.History))
	for _, c := range s.History {
		out = append(out, c.Outcome)
	}

	return out
}
