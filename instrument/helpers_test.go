package instrument

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

// testCatalog copies the builtin classes with short timeouts and a fast
// recovery plan.
func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	builtin := catalog.Builtin()
	cat := catalog.New()
	for _, name := range builtin.Names() {
		cls, err := builtin.Class(name)
		require.NoError(t, err)

		def := cls.Def()
		for action, cmd := range def.Commands {
			cmd.Timeout = testTimeout
			def.Commands[action] = cmd
		}
		def.Recovery = recovery.Plan{
			{Action: recovery.ActionRetryCommand, Retries: 1},
			{Action: recovery.ActionReopenPort, Retries: 1},
			{Action: recovery.ActionAbort},
		}
		require.NoError(t, cat.Add(def))
	}

	return cat
}

// simDialers routes port names to simulated instruments.
func simDialers(instruments map[string]*simulator.Instrument) DialerFunc {
	return func(p PortConfig, _ ...transport.Option) (transport.Dialer, error) {
		in, ok := instruments[p.Name]
		if !ok {
			return nil, ErrInvalidConfig
		}

		return in, nil
	}
}

func fastPort(name string, classes ...string) PortConfig {
	return PortConfig{
		Name:         name,
		Address:      "sim:" + name,
		PollInterval: 2 * time.Millisecond,
		DrainWindow:  2 * time.Millisecond,
		Classes:      classes,
	}
}

// newHeadManager opens a manager with HT, TR and SB sharing one simulated
// head sensor port.
func newHeadManager(t *testing.T) (*Manager, *simulator.Instrument, *simulator.HeadSensor) {
	t.Helper()

	hs := simulator.NewHeadSensor()
	in := simulator.New("head", hs)

	mgr := NewManager(testCatalog(t), WithDialerFunc(simDialers(map[string]*simulator.Instrument{"head": in})))
	t.Cleanup(func() {
		_ = mgr.Close()
		in.Close()
	})

	cfg := &Config{Ports: []PortConfig{fastPort("head", "HT", "TR", "SB")}}
	require.NoError(t, mgr.Open(context.Background(), cfg))

	return mgr, in, hs
}
