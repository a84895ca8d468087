package log

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T, l Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(l)
	t.Cleanup(func() {
		SetLevel(LevelInfo)
	})
	return &buf
}

func TestInfoWritesPairs(t *testing.T) {
	buf := capture(t, LevelInfo)

	Info("event created", "id", "abc", "total", 4)

	out := buf.String()
	assert.Contains(t, out, "INF")
	assert.Contains(t, out, "event created")
	assert.Contains(t, out, "id=abc")
	assert.Contains(t, out, "total=4")
}

func TestLevelFilters(t *testing.T) {
	buf := capture(t, LevelWarn)

	Debug("hidden debug")
	Info("hidden info")
	Warn("shown warn")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown warn")
}

func TestErrorIncludesErr(t *testing.T) {
	buf := capture(t, LevelDebug)

	Error("backend request failed", errors.New("connection refused"), "path", "/events")

	out := buf.String()
	assert.Contains(t, out, "ERR")
	assert.Contains(t, out, "connection refused")
	assert.Contains(t, out, "path=/events")
}

func TestMalformedPairsDropped(t *testing.T) {
	buf := capture(t, LevelInfo)

	Info("odd", "key", "value", 42, "ignored", "dangling")

	out := buf.String()
	assert.Contains(t, out, "key=value")
	assert.NotContains(t, out, "dangling")
	assert.NotContains(t, out, "ignored")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" Warning "))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("chatty"))
}
