package worker

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLogger(&buf, "info", "json")

	l.Debugf("hidden %d", 1)
	l.Infof("loaded %s", "fn")
	WithFields(l, map[string]interface{}{"invocation_id": "inv-1"}).Warnf("slow")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "info", first["level"])
	assert.Equal(t, "loaded fn", first["message"])
	assert.Equal(t, "warn", second["level"])
	assert.Equal(t, "inv-1", second["invocation_id"])
}

func TestZerologLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLogger(&buf, "debug", "text")
	l.Debugf("debugging %s", "x")
	l.Errorf("broken")

	out := buf.String()
	assert.Contains(t, out, "debugging x")
	assert.Contains(t, out, "broken")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]string{
		"debug":   "debug",
		"TRACE":   "debug",
		"warning": "warn",
		"error":   "error",
		"":        "info",
		"bogus":   "info",
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in).String(), in)
	}
}

func TestWithFields_PlainLogger(t *testing.T) {
	l := &NoOpLogger{}
	assert.Same(t, l, WithFields(l, map[string]interface{}{"a": 1}))
}

func TestGlobalLogger(t *testing.T) {
	prev := GetGlobalLogger()
	t.Cleanup(func() { SetGlobalLogger(prev) })

	var buf bytes.Buffer
	SetGlobalLogger(NewZerologLogger(&buf, "debug", "json"))
	logInfof("connected to %s", "host")
	logDebugf("detail")
	assert.Contains(t, buf.String(), "connected to host")
	assert.Contains(t, buf.String(), "detail")

	SetGlobalLogger(nil)
	assert.IsType(t, &NoOpLogger{}, GetGlobalLogger())
	logErrorf("dropped")
}

func TestNewLoggerFromConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.log")
	l := NewLoggerFromConfig(LogConfig{Level: "info", Format: "json", File: path, MaxSizeMB: 1})
	l.Infof("to file")
	assert.FileExists(t, path)
}
