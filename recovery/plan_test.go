package recovery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanValidate(t *testing.T) {
	require.NoError(t, DefaultPlan().Validate())
	require.NoError(t, testPlan().Validate())

	for name, p := range map[string]Plan{
		"empty":          {},
		"unknown action": {{Action: "dance", Retries: 1}},
		"no retries":     {{Action: ActionSoftReset}},
		"negative":       {{Action: ActionWait, Retries: 1, Settle: -time.Second}},
	} {
		require.ErrorIs(t, p.Validate(), ErrInvalidPlan, name)
	}

	_, err := NewController(Plan{})
	require.ErrorIs(t, err, ErrInvalidPlan)
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction(" Power-Cycle ")
	require.NoError(t, err)
	assert.Equal(t, ActionPowerCycle, a)

	_, err = ParseAction("explode")
	require.ErrorIs(t, err, ErrInvalidPlan)

	assert.True(t, ActionWaitAfterPower.IsWait())
	assert.False(t, ActionReopenPort.IsWait())
}

func TestStepString(t *testing.T) {
	assert.Equal(t, "retry-command x2", Step{Action: ActionRetryCommand, Retries: 2}.String())
	assert.Equal(t, "soft-reset x1 (settle 5s)", Step{Action: ActionSoftReset, Retries: 1, Settle: 5 * time.Second}.String())
}
