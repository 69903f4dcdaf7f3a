package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(LoggerConfig{Level: WarnLevel, Output: &buf})

	l.Debug("hidden")
	l.Info("hidden")
	assert.Empty(t, buf.String())

	l.Warn("shown", "member", "p.A.m()")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "member=")

	buf.Reset()
	l.SetLevel(DebugLevel)
	l.Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(LoggerConfig{Level: InfoLevel, Output: &buf})
	l.SetJSONOutput(true)

	l.Info("built", "nodes", 7)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "built", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.EqualValues(t, 7, entry["nodes"])
}

func TestFields_OddArgs(t *testing.T) {
	msg, f := fields("unresolved", "Foo", "line", 3)
	assert.Equal(t, "unresolved Foo", msg)
	assert.Equal(t, 3, f["line"])

	msg, f = fields("plain")
	assert.Equal(t, "plain", msg)
	assert.Nil(t, f)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DebugLevel},
		{"trace", DebugLevel},
		{"info", InfoLevel},
		{"warn", WarnLevel},
		{"error", ErrorLevel},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseLevel(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestDiscardAndDefault(t *testing.T) {
	Discard().Error("dropped")
	assert.NotNil(t, Default())
	assert.Same(t, Default(), Default())
	assert.Equal(t, Logger(Default()), OrDefault(nil))
}
