package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultDebounceMillis, cfg.DebounceMillis)
	assert.Equal(t, ",", cfg.Delimiter)
	assert.True(t, cfg.AutoBackup)
	assert.True(t, cfg.AutoValidate)
	assert.True(t, cfg.BackupOnValidationFailure)
	assert.Equal(t, DefaultChecksumAlgorithm, cfg.Backup.Checksum)
	assert.Equal(t, DefaultMaxBackups, cfg.Backup.Retention.MaxBackups)
	assert.Equal(t, DefaultMinBackups, cfg.Backup.Retention.MinBackups)
	assert.Equal(t, DefaultErrorCap, cfg.Validation.ErrorCap)
	assert.Equal(t, "structured", cfg.Diff.Mode)
	assert.True(t, cfg.Diff.DetectMoves)
	assert.Equal(t, DefaultReportFormats, cfg.Report.Formats)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfgDir := filepath.Join(dir, "tabwatch")
	require.NoError(t, os.MkdirAll(cfgDir, 0o755))
	content := `
debounce_millis: 250
auto_backup: false
backup:
  checksum: sha256
  retention:
    max_backups: 3
diff:
  mode: hybrid
  key_columns: [name]
`
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte(content), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.DebounceMillis)
	assert.False(t, cfg.AutoBackup)
	assert.Equal(t, "sha256", cfg.Backup.Checksum)
	assert.Equal(t, 3, cfg.Backup.Retention.MaxBackups)
	assert.Equal(t, "hybrid", cfg.Diff.Mode)
	assert.Equal(t, []string{"name"}, cfg.Diff.KeyColumns)

	// Unspecified keys keep defaults.
	assert.Equal(t, DefaultMinBackups, cfg.Backup.Retention.MinBackups)
}

func TestWriteDefault(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	require.NoError(t, WriteDefault())

	path := filepath.Join(dir, "tabwatch", "config.yaml")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "debounce_millis")

	// Second call must not clobber an existing file.
	require.NoError(t, os.WriteFile(path, []byte("debounce_millis: 42\n"), 0o644))
	require.NoError(t, WriteDefault())
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debounce_millis: 42\n", string(data))
}
