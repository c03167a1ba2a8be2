package device

import (
	"context"
	"fmt"

	"github.com/arloliu/go-instrument/catalog"
	"github.com/arloliu/go-instrument/recovery"
)

// actionCommands lists, per recovery action, the class actions tried in
// order. The first one the class defines is sent.
var actionCommands = map[recovery.Action][]string{
	recovery.ActionCheckCommunication: {catalog.ActionIdentify, catalog.ActionStatus},
	recovery.ActionResetSubdevice:     {catalog.ActionResetSubdevice, catalog.ActionReset},
	recovery.ActionSoftReset:          {catalog.ActionReset},
	recovery.ActionPowerCycle:         {catalog.ActionPowerCycle},
	recovery.ActionQueryStatus:        {catalog.ActionStatus, catalog.ActionIdentify},
	recovery.ActionCheckAlarms:        {catalog.ActionAlarms},
}

// classExecutor runs recovery actions through the class vocabulary. It is
// called with the session lock held.
type classExecutor struct {
	dev *Device
}

var _ recovery.Executor = (*classExecutor)(nil)

func (e *classExecutor) Execute(ctx context.Context, step recovery.Step) error {
	d := e.dev

	switch step.Action {
	case recovery.ActionRetryCommand, recovery.ActionAbort:
		return nil
	case recovery.ActionWait, recovery.ActionWaitAfterReset, recovery.ActionWaitAfterPower:
		return nil
	case recovery.ActionReopenPort:
		d.logger.Info("device: reopening port", "session", d.sess.Name())
		return d.sess.Reopen(ctx)
	}

	candidates, ok := actionCommands[step.Action]
	if !ok {
		return fmt.Errorf("device: no executor for %s", step.Action)
	}

	for _, action := range candidates {
		if d.class.HasAction(action) {
			return d.lowLevel(ctx, action)
		}
	}

	d.logger.Debug("device: class has no command for recovery action", "action", string(step.Action))

	return nil
}

// lowLevel sends action outside the high-level state machine. The answer
// is validated but does not touch the unexpected-answer counter.
func (d *Device) lowLevel(ctx context.Context, action string) error {
	req, err := d.class.Request(action)
	if err != nil {
		return err
	}
	wire, err := d.class.Codec().Encode(req)
	if err != nil {
		return err
	}

	prev := d.swapLow(LowLevelOnly)
	defer d.setLow(prev)

	_, err = d.exchange(ctx, req, wire, d.class.Timeout(action), nil)
	if err != nil {
		return fmt.Errorf("device: %s: %w", action, err)
	}
	d.logger.Debug("device: recovery command answered", "action", action)

	return nil
}

func (d *Device) swapLow(s LowState) LowState {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev := d.status.Low
	d.status.Low = s

	return prev
}
