// Package config loads tabwatch configuration from file and environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// RetentionConfig bounds how many and how old backups are kept per file.
type RetentionConfig struct {
	MaxBackups int `mapstructure:"max_backups"`
	MaxAgeDays int `mapstructure:"max_age_days"`
	MinBackups int `mapstructure:"min_backups"`
}

// BackupConfig configures the backup store.
type BackupConfig struct {
	Dir              string          `mapstructure:"dir"`
	Checksum         string          `mapstructure:"checksum"`
	Compress         bool            `mapstructure:"compress"`
	CompressionLevel int             `mapstructure:"compression_level"`
	Retention        RetentionConfig `mapstructure:"retention"`
}

// ValidationConfig configures the validation pipeline.
type ValidationConfig struct {
	Strict   bool `mapstructure:"strict"`
	ErrorCap int  `mapstructure:"error_cap"`
}

// DiffConfig configures the diff engine.
type DiffConfig struct {
	Mode        string   `mapstructure:"mode"`
	KeyColumns  []string `mapstructure:"key_columns"`
	DetectMoves bool     `mapstructure:"detect_moves"`
	MaxRows     int      `mapstructure:"max_rows"`
	TopColumns  int      `mapstructure:"top_columns"`
}

// ReportConfig configures diff report generation.
type ReportConfig struct {
	Formats []string `mapstructure:"formats"`
	Dir     string   `mapstructure:"dir"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// Config represents the application configuration.
type Config struct {
	DebounceMillis int    `mapstructure:"debounce_millis"`
	Delimiter      string `mapstructure:"delimiter"`

	AutoBackup                bool `mapstructure:"auto_backup"`
	AutoValidate              bool `mapstructure:"auto_validate"`
	BackupOnValidationFailure bool `mapstructure:"backup_on_validation_failure"`
	DiffEnabled               bool `mapstructure:"diff_enabled"`
	CompareWithBackups        bool `mapstructure:"compare_with_backups"`

	LogDir string `mapstructure:"log_dir"`

	Backup     BackupConfig     `mapstructure:"backup"`
	Validation ValidationConfig `mapstructure:"validation"`
	Diff       DiffConfig       `mapstructure:"diff"`
	Report     ReportConfig     `mapstructure:"report"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/tabwatch/config.yaml
//   - $HOME/.config/tabwatch/config.yaml
//
// Environment variables are prefixed with TABWATCH_ (e.g. TABWATCH_AUTO_BACKUP).
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		v.AddConfigPath(filepath.Join(xdgConfigHome, "tabwatch"))
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	v.AddConfigPath(filepath.Join(homeDir, ".config", "tabwatch"))

	v.SetEnvPrefix("TABWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; defaults apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, p := range []*string{&cfg.Backup.Dir, &cfg.Report.Dir, &cfg.LogDir, &cfg.Logging.Path} {
		if strings.HasPrefix(*p, "~") {
			*p = filepath.Join(homeDir, (*p)[1:])
		}
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debounce_millis", DefaultDebounceMillis)
	v.SetDefault("delimiter", DefaultDelimiter)

	v.SetDefault("auto_backup", true)
	v.SetDefault("auto_validate", true)
	v.SetDefault("backup_on_validation_failure", true)
	v.SetDefault("diff_enabled", true)
	v.SetDefault("compare_with_backups", true)

	v.SetDefault("log_dir", filepath.Join(DataDir(), "changelog"))

	v.SetDefault("backup.dir", filepath.Join(DataDir(), "backups"))
	v.SetDefault("backup.checksum", DefaultChecksumAlgorithm)
	v.SetDefault("backup.compress", false)
	v.SetDefault("backup.compression_level", DefaultCompressionLevel)
	v.SetDefault("backup.retention.max_backups", DefaultMaxBackups)
	v.SetDefault("backup.retention.max_age_days", DefaultMaxAgeDays)
	v.SetDefault("backup.retention.min_backups", DefaultMinBackups)

	v.SetDefault("validation.strict", false)
	v.SetDefault("validation.error_cap", DefaultErrorCap)

	v.SetDefault("diff.mode", DefaultDiffMode)
	v.SetDefault("diff.key_columns", []string{})
	v.SetDefault("diff.detect_moves", true)
	v.SetDefault("diff.max_rows", DefaultMaxDiffRows)
	v.SetDefault("diff.top_columns", DefaultTopColumns)

	v.SetDefault("report.formats", DefaultReportFormats)
	v.SetDefault("report.dir", filepath.Join(DataDir(), "reports"))

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.components", map[string]string{
		"monitor":      "warn",
		"backup":       "info",
		"validate":     "info",
		"diff":         "info",
		"orchestrator": "info",
	})
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "tabwatch"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "tabwatch"), nil
}

// DataDir returns $XDG_DATA_HOME/tabwatch/ for backups, reports, and the change log.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "tabwatch")
}

// StateDir returns $XDG_STATE_HOME/tabwatch/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "tabwatch")
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	if err := os.MkdirAll(DataDir(), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return nil
}

// WriteDefault writes a commented default config file if none exists.
// Returns nil if a config file already exists.
func WriteDefault() error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}

	configDir, err := ConfigDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(configDir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check config file: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# tabwatch configuration

# Milliseconds to coalesce filesystem notifications for the same file.
debounce_millis: %d

# Field delimiter of watched files.
delimiter: ","

# Pipeline policy toggles.
auto_backup: true
auto_validate: true
backup_on_validation_failure: true
diff_enabled: true
compare_with_backups: true

# Change log directory (append-only store).
log_dir: %s

backup:
  dir: %s
  # Checksum algorithm: xxhash64 (fast) or sha256 (cryptographic).
  checksum: %s
  compress: false
  compression_level: %d
  retention:
    max_backups: %d
    max_age_days: %d
    min_backups: %d

validation:
  # Strict mode turns ragged-row warnings into errors.
  strict: false
  # Stop collecting errors once this many were recorded.
  error_cap: %d

diff:
  # Comparison mode: text, schema, structured, or hybrid.
  mode: %s
  # Columns identifying the same row across versions (empty = positional).
  key_columns: []
  detect_moves: true
  # Row ceiling; larger files produce truncated diffs.
  max_rows: %d
  top_columns: %d

report:
  # Formats rendered after automatic diffs: console, html, json, markdown.
  formats: [console, json]
  dir: %s

logging:
  level: info
  path: ""
  rotation:
    max_size: 10MB
    max_age: 30
    max_backups: 5
  components:
    monitor: warn
    backup: info
    validate: info
    diff: info
    orchestrator: info
`,
		DefaultDebounceMillis,
		filepath.Join(DataDir(), "changelog"),
		filepath.Join(DataDir(), "backups"),
		DefaultChecksumAlgorithm,
		DefaultCompressionLevel,
		DefaultMaxBackups,
		DefaultMaxAgeDays,
		DefaultMinBackups,
		DefaultErrorCap,
		DefaultDiffMode,
		DefaultMaxDiffRows,
		DefaultTopColumns,
		filepath.Join(DataDir(), "reports"),
	)

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}

	return nil
}
