package device

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arloliu/go-instrument/fault"
)

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "free", LowFree.String())
	assert.Equal(t, "not-from-qa", LowNotFromQA.String())
	assert.Equal(t, "unknown", LowState(99).String())
	assert.Equal(t, "waiting", HighWaiting.String())
	assert.Equal(t, "unknown", HighState(99).String())

	assert.True(t, LowLost.IsExceptional())
	assert.True(t, LowError.IsExceptional())
	assert.False(t, LowBusy.IsExceptional())
}

func TestOutcomeOf(t *testing.T) {
	cases := map[error]Outcome{
		nil:                                       OutcomeSuccess,
		context.Canceled:                          OutcomeCanceled,
		fault.New(fault.ErrTimeout, "TR", nil):    OutcomeTimeout,
		fault.New(fault.ErrDevice, "TR", nil):     OutcomeDeviceError,
		fault.New(fault.ErrWrite, "TR", nil):      OutcomeWriteError,
		fault.New(fault.ErrConnection, "TR", nil): OutcomeConnectionError,
		fault.New(fault.ErrParse, "TR", nil):      OutcomeParseError,
	}

	for err, want := range cases {
		assert.Equal(t, want, outcomeOf(err), "%v", err)
		assert.NotEqual(t, "unknown", want.String())
	}
}
