package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autonexit/FaceShield/internal/config"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	l, err := NewLogger(&config.Config{LogDirectory: t.TempDir(), LogLevel: "info"})
	require.NoError(t, err)
	return l
}

func readLog(t *testing.T, l *Logger, name string) string {
	t.Helper()
	l.Sync()
	data, err := os.ReadFile(filepath.Join(l.Dir(), name))
	require.NoError(t, err)
	return string(data)
}

func TestLevelsGoToSeparateFiles(t *testing.T) {
	l := newTestLogger(t)

	l.Info("run %s started", "abc")
	l.Warning("callback failed: %v", "boom")
	l.Error("encoder closed")

	info := readLog(t, l, InfoFile)
	warning := readLog(t, l, WarningFile)
	errs := readLog(t, l, ErrorFile)

	assert.Contains(t, info, "run abc started")
	assert.NotContains(t, info, "callback failed")
	assert.Contains(t, warning, "callback failed: boom")
	assert.NotContains(t, warning, "encoder closed")
	assert.Contains(t, errs, "encoder closed")
}

func TestNamedLoggerSharesFiles(t *testing.T) {
	l := newTestLogger(t)
	l.Named("pipeline").Info("frame %d", 3)

	info := readLog(t, l, InfoFile)
	assert.Contains(t, info, `"logger":"pipeline"`)
	assert.Contains(t, info, "frame 3")
}

func TestCleanLogs(t *testing.T) {
	l := newTestLogger(t)
	l.Warning("to be removed")
	require.NotEmpty(t, readLog(t, l, WarningFile))

	require.NoError(t, l.CleanLogs(WarningFile))
	assert.Empty(t, readLog(t, l, WarningFile))
}

func TestNopLogger(t *testing.T) {
	l := Nop()
	l.Info("nothing")
	assert.NoError(t, l.CleanLogs(InfoFile))
}
