package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WARN, &buf, "")
	l.SetColor(false)

	l.Debug("should not appear")
	l.Warn("should appear")

	out := buf.String()
	assert.NotContains(t, out, "should not appear")
	assert.Contains(t, out, "should appear")
	assert.Contains(t, out, "WARN")
}

func TestWithFieldAddsPrefix(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(INFO, &buf, "")
	l.SetColor(false)
	tagged := l.WithField("peer", "127.0.0.1:9000")
	tagged.Info("hello")
	assert.Contains(t, buf.String(), "peer=127.0.0.1:9000")
}

func TestFileLoggerWritesJSON(t *testing.T) {
	dir := t.TempDir()
	l, err := NewFileLogger(DEBUG, dir, "receiver")
	require.NoError(t, err)
	defer l.Close()

	l.Info("accepted seq=%d", 3)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "receiver_"))

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"level":"info"`)
	assert.Contains(t, string(data), "accepted seq=3")
}
