package recovery

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Action is one recovery escalation action.
type Action string

const (
	ActionRetryCommand       Action = "retry-command"
	ActionWait               Action = "wait"
	ActionCheckCommunication Action = "check-communication"
	ActionResetSubdevice     Action = "reset-subdevice"
	ActionSoftReset          Action = "soft-reset"
	ActionWaitAfterReset     Action = "wait-after-reset"
	ActionPowerCycle         Action = "power-cycle"
	ActionWaitAfterPower     Action = "wait-after-power"
	ActionReopenPort         Action = "reopen-port"
	ActionQueryStatus        Action = "query-status"
	ActionCheckAlarms        Action = "check-alarms"
	ActionAbort              Action = "abort"
)

var knownActions = []Action{
	ActionRetryCommand,
	ActionWait,
	ActionCheckCommunication,
	ActionResetSubdevice,
	ActionSoftReset,
	ActionWaitAfterReset,
	ActionPowerCycle,
	ActionWaitAfterPower,
	ActionReopenPort,
	ActionQueryStatus,
	ActionCheckAlarms,
	ActionAbort,
}

// ErrInvalidPlan is returned for malformed plans.
var ErrInvalidPlan = errors.New("recovery: invalid plan")

// ParseAction parses the string form of an action.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidPlan, s)
	}

	return a, nil
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	for _, k := range knownActions {
		if a == k {
			return true
		}
	}

	return false
}

// IsWait reports whether the action only waits for the settle time.
func (a Action) IsWait() bool {
	return a == ActionWait || a == ActionWaitAfterReset || a == ActionWaitAfterPower
}

// Step is one level of a plan: run Action at most Retries times, waiting
// Settle after each run.
type Step struct {
	Action  Action        `yaml:"action"`
	Retries int           `yaml:"retries"`
	Settle  time.Duration `yaml:"settle"`
}

func (s Step) String() string {
	if s.Settle > 0 {
		return fmt.Sprintf("%s x%d (settle %s)", s.Action, s.Retries, s.Settle)
	}

	return fmt.Sprintf("%s x%d", s.Action, s.Retries)
}

// Plan is an ordered escalation ladder. Level n of the ladder is Plan[n-1].
type Plan []Step

// Validate checks actions, retry budgets and settle times.
func (p Plan) Validate() error {
	if len(p) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidPlan)
	}

	for i, s := range p {
		if !s.Action.Valid() {
			return fmt.Errorf("%w: level %d: unknown action %q", ErrInvalidPlan, i+1, s.Action)
		}
		if s.Action != ActionAbort && s.Retries < 1 {
			return fmt.Errorf("%w: level %d: %s needs at least one retry", ErrInvalidPlan, i+1, s.Action)
		}
		if s.Settle < 0 {
			return fmt.Errorf("%w: level %d: negative settle time", ErrInvalidPlan, i+1)
		}
	}

	return nil
}

// Clone returns a copy of p.
func (p Plan) Clone() Plan {
	return append(Plan(nil), p...)
}

// DefaultPlan is the ladder used by device classes that do not declare one.
func DefaultPlan() Plan {
	return Plan{
		{Action: ActionRetryCommand, Retries: 2},
		{Action: ActionWait, Retries: 1, Settle: time.Second},
		{Action: ActionCheckCommunication, Retries: 1},
		{Action: ActionSoftReset, Retries: 1, Settle: 5 * time.Second},
		{Action: ActionPowerCycle, Retries: 1, Settle: 10 * time.Second},
		{Action: ActionReopenPort, Retries: 1, Settle: time.Second},
		{Action: ActionAbort},
	}
}
