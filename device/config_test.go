package device

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-instrument/logger"
	"github.com/arloliu/go-instrument/recovery"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, DefaultMaxUnexpected, cfg.MaxUnexpected())
	assert.Equal(t, DefaultHistorySize, cfg.HistorySize())
	assert.False(t, cfg.maxUnexpectedSet)
	assert.Nil(t, cfg.executor)
	assert.Empty(t, cfg.plan)
	assert.NotNil(t, cfg.GetLogger())
}

func TestNewConfig_WithOptions(t *testing.T) {
	l := logger.NewMockLogger()
	exec := recovery.ExecutorFunc(func(context.Context, recovery.Step) error { return nil })
	plan := recovery.Plan{{Action: recovery.ActionAbort}}

	cfg, err := NewConfig(
		WithLogger(l),
		WithMaxUnexpected(5),
		WithHistorySize(8),
		WithActionExecutor(exec),
		WithRecoveryPlan(plan),
	)
	require.NoError(t, err)

	assert.Same(t, l, cfg.GetLogger())
	assert.Equal(t, 5, cfg.MaxUnexpected())
	assert.True(t, cfg.maxUnexpectedSet)
	assert.Equal(t, 8, cfg.HistorySize())
	assert.NotNil(t, cfg.executor)
	assert.Equal(t, plan, cfg.plan)

	plan[0].Action = recovery.ActionWait
	assert.Equal(t, recovery.ActionAbort, cfg.plan[0].Action)
}

func TestNewConfig_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"nil logger", WithLogger(nil)},
		{"max unexpected too small", WithMaxUnexpected(MinMaxUnexpected - 1)},
		{"max unexpected too large", WithMaxUnexpected(MaxMaxUnexpected + 1)},
		{"history too small", WithHistorySize(MinHistorySize - 1)},
		{"history too large", WithHistorySize(MaxHistorySize + 1)},
		{"nil executor", WithActionExecutor(nil)},
		{"empty plan", WithRecoveryPlan(nil)},
		{"bad plan", WithRecoveryPlan(recovery.Plan{{Action: recovery.ActionSoftReset}})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(tt.opt)
			require.Error(t, err)
		})
	}
}
