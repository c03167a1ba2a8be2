// Package recovery implements the escalation ladder run when a device keeps
// giving unexpected answers.
//
// A Controller walks a Plan level by level. Each call to Next returns the
// next action to execute: the current level's action while its retry budget
// lasts, otherwise the first action of the next level. Reaching an abort
// step or the end of the plan exhausts the ladder. A successful command
// resets the controller.
package recovery

import (
	"context"
	"fmt"

	"github.com/arloliu/go-instrument/fault"
)

// Executor runs recovery actions.
type Executor interface {
	Execute(ctx context.Context, step Step) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, step Step) error

// Execute calls f(ctx, step).
func (f ExecutorFunc) Execute(ctx context.Context, step Step) error {
	return f(ctx, step)
}

// State is a snapshot of a controller.
type State struct {
	// Level is the current level, 0 when no recovery is in progress.
	Level int
	// MaxLevel is the number of levels in the plan.
	MaxLevel int
	// Counters holds the number of runs per level.
	Counters []int
	// Exhausted is true once the ladder has been exhausted.
	Exhausted bool
}

// Controller tracks the position on a recovery plan. It is not safe for
// concurrent use; devices guard it with their own lock.
type Controller struct {
	plan      Plan
	level     int
	counters  []int
	exhausted bool
}

// NewController validates plan and returns a controller at level 0.
func NewController(plan Plan) (*Controller, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	return &Controller{
		plan:     plan.Clone(),
		counters: make([]int, len(plan)),
	}, nil
}

// Next advances the ladder and returns the action to execute. When the
// ladder is exhausted it returns fault.ErrRecoveryExhausted; callers should
// report that once and stop issuing commands until Reset.
func (c *Controller) Next() (Step, error) {
	if c.exhausted {
		return Step{Action: ActionAbort}, fault.ErrRecoveryExhausted
	}

	if c.level == 0 {
		c.level = 1
	}

	for c.level <= len(c.plan) {
		idx := c.level - 1
		step := c.plan[idx]

		if step.Action == ActionAbort {
			c.exhausted = true
			return step, fmt.Errorf("%w: abort at level %d", fault.ErrRecoveryExhausted, c.level)
		}

		if c.counters[idx] < step.Retries {
			c.counters[idx]++
			return step, nil
		}

		c.counters[idx] = 0
		c.level++
	}

	c.level = len(c.plan)
	c.exhausted = true

	return Step{Action: ActionAbort}, fmt.Errorf("%w: plan ended after %d levels", fault.ErrRecoveryExhausted, len(c.plan))
}

// Reset returns the controller to level 0 with all counters cleared.
func (c *Controller) Reset() {
	c.level = 0
	c.exhausted = false
	clear(c.counters)
}

// Level returns the current level.
func (c *Controller) Level() int { return c.level }

// Exhausted reports whether the ladder has been exhausted.
func (c *Controller) Exhausted() bool { return c.exhausted }

// Plan returns a copy of the plan.
func (c *Controller) Plan() Plan { return c.plan.Clone() }

// State returns a snapshot.
func (c *Controller) State() State {
	return State{
		Level:     c.level,
		MaxLevel:  len(c.plan),
		Counters:  append([]int(nil), c.counters...),
		Exhausted: c.exhausted,
	}
}
