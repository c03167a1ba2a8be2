package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogLogger_JSONOutput(t *testing.T) {
	t.Setenv("ENV", "")

	var buf bytes.Buffer
	l := NewSlogWithWriter(&buf, InfoLevel, false)

	l.Debug("hidden")
	assert.Zero(t, buf.Len())

	l.With("class", "TR").Warn("device: unexpected answer", "raw", "TRx")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "device: unexpected answer", rec["msg"])
	assert.Equal(t, "TR", rec["class"])
	assert.Equal(t, "TRx", rec["raw"])
	assert.Contains(t, rec, "ts")
	assert.Equal(t, "WARN", rec["level"])
}

func TestSlogLogger_SetLevelSharedWithChildren(t *testing.T) {
	t.Setenv("ENV", "")

	var buf bytes.Buffer
	parent := NewSlogWithWriter(&buf, ErrorLevel, false)
	child := parent.With("component", "session")

	child.Info("dropped")
	assert.Zero(t, buf.Len())

	parent.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, child.Level())

	child.Debug("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		level Level
		ok    bool
	}{
		{"debug", DebugLevel, true},
		{"info", InfoLevel, true},
		{"warning", WarnLevel, true},
		{"error", ErrorLevel, true},
		{"verbose", InfoLevel, false},
	}

	for _, tt := range tests {
		level, ok := ParseLevel(tt.name)
		assert.Equal(t, tt.level, level, tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
	}

	assert.Equal(t, "warn", WarnLevel.String())
}
