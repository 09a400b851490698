package kserial

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type memSink struct {
	bytes.Buffer
}

func (m *memSink) Close() error { return nil }

func TestLevelGate(t *testing.T) {
	var buf memSink
	l := New(&buf)
	require.NoError(t, l.SetLevel(WARN))

	require.NoError(t, l.Info("should not appear"))
	require.Empty(t, buf.String())

	require.NoError(t, l.Error("should appear"))
	require.Contains(t, buf.String(), "should appear")
}

func TestRFC5424Framing(t *testing.T) {
	var buf memSink
	l := New(&buf)

	require.NoError(t, l.Critical("disk read failed", KV("mount", "/mnt/fat32"), KVErr(errBoom)))
	out := buf.String()
	require.True(t, strings.HasPrefix(out, "<"), "expected RFC5424 PRI header, got %q", out)
	require.Contains(t, out, "continuumos")
	require.Contains(t, out, "disk read failed")
	require.Contains(t, out, "mount=")
}

func TestFieldsAppendsStructuredData(t *testing.T) {
	var buf memSink
	l := New(&buf)
	pidLog := l.Fields(KV("pid", 7))

	require.NoError(t, pidLog.Warn("event queue full"))
	require.Contains(t, buf.String(), "pid=\"7\"")
}

func TestOffDisablesEverything(t *testing.T) {
	var buf memSink
	l := New(&buf)
	require.NoError(t, l.SetLevel(OFF))
	require.NoError(t, l.Critical("nothing should be written"))
	require.Empty(t, buf.String())
}

func TestLevelFromString(t *testing.T) {
	lvl, err := LevelFromString("warn")
	require.NoError(t, err)
	require.Equal(t, WARN, lvl)

	_, err = LevelFromString("not-a-level")
	require.ErrorIs(t, err, ErrInvalidLevel)
}

var errBoom = &testError{"boom"}

type testError struct{ s string }

func (e *testError) Error() string { return e.s }
