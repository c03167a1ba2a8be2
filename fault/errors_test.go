package fault

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandError_UnwrapsKindAndCause(t *testing.T) {
	err := &CommandError{
		Kind:     ErrRecoveryExhausted,
		Class:    "TR",
		Question: "TRw",
		Raw:      []byte("TRx\n"),
		Pattern:  "TR[0 | h%d,%d]",
		Level:    3,
		Err:      io.ErrUnexpectedEOF,
	}

	assert.ErrorIs(t, err, ErrRecoveryExhausted)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.NotErrorIs(t, err, ErrTimeout)

	wrapped := fmt.Errorf("issue command: %w", err)
	cmdErr, ok := AsCommandError(wrapped)
	require.True(t, ok)
	assert.Equal(t, 3, cmdErr.Level)
	assert.Equal(t, []byte("TRx\n"), cmdErr.Raw)

	msg := err.Error()
	assert.Contains(t, msg, "TR: recovery exhausted")
	assert.Contains(t, msg, `"TRw"`)
	assert.Contains(t, msg, "recovery level 3")
}

func TestCommandError_DeviceCode(t *testing.T) {
	err := &CommandError{Kind: ErrDevice, Class: "F1", Code: 4, Message: "motor stalled"}
	assert.Equal(t, "F1: device error: code 4 motor stalled", err.Error())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrTimeout, KindOf(New(ErrTimeout, "HT", nil)))
	assert.Equal(t, ErrParse, KindOf(fmt.Errorf("decode: %w", ErrParse)))
	assert.Nil(t, KindOf(errors.New("other")))

	assert.True(t, IsRecoverable(New(ErrWrite, "TR", io.ErrClosedPipe)))
	assert.True(t, IsRecoverable(New(ErrDevice, "TR", nil)))
	assert.False(t, IsRecoverable(New(ErrConnection, "TR", nil)))
	assert.False(t, IsRecoverable(New(ErrRecoveryExhausted, "TR", nil)))
}
