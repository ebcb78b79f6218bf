package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"fatal", LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidLevel)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestInitAndGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabwatch.log")

	require.NoError(t, Init(Config{Level: "debug", Path: path}))
	defer func() { _ = Close() }()

	logger := Get("monitor")
	logger.Info("watch started", "path", "/data/shops.csv")
	logger.Debug("debounce reset")

	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "watch started")
	assert.Contains(t, content, "monitor")
}

func TestComponentLevelOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabwatch.log")

	require.NoError(t, Init(Config{
		Level:      "debug",
		Path:       path,
		Components: map[string]string{"backup": "error"},
	}))
	defer func() { _ = Close() }()

	Get("backup").Info("should be suppressed")
	Get("backup").Error("index persist failed")

	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "should be suppressed")
	assert.Contains(t, string(data), "index persist failed")
}

func TestGetBeforeInitIsSilent(t *testing.T) {
	// Must not panic or write anywhere.
	logger := Get("orphan-component")
	logger.Info("discarded")
}

func TestRotatingWriter_RotatesOnSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tabwatch.log")

	w, err := NewRotatingWriter(path, RotationConfig{MaxSize: 64, MaxBackups: 2})
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	line := strings.Repeat("x", 40) + "\n"
	for range 5 {
		_, err := w.Write([]byte(line))
		require.NoError(t, err)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Greater(t, len(entries), 1, "expected rotated files alongside the active log")
}
