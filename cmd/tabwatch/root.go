package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tabwatch/tabwatch/pkg/tabwatch/backup"
	"github.com/tabwatch/tabwatch/pkg/tabwatch/checksum"
	"github.com/tabwatch/tabwatch/pkg/tabwatch/config"
	"github.com/tabwatch/tabwatch/pkg/tabwatch/diff"
	"github.com/tabwatch/tabwatch/pkg/tabwatch/logging"
	"github.com/tabwatch/tabwatch/pkg/tabwatch/table"
	"github.com/tabwatch/tabwatch/pkg/tabwatch/validate"
)

var (
	flagVerbose  bool
	flagLogLevel string

	rootCmd = &cobra.Command{
		Use:   "tabwatch",
		Short: "Watch, back up, validate, and diff tabular data files",
		Long: `Tabwatch is a change-management pipeline for delimited data files.

It watches files for changes, takes checksummed versioned backups with
retention, validates structure and content, computes structured diffs
between versions, and keeps an append-only change log.

Examples:
  tabwatch watch data/shops.csv           # Run the full pipeline
  tabwatch validate data/shops.csv        # Validate a file on demand
  tabwatch backup create data/shops.csv   # Take a backup now
  tabwatch backup list data/shops.csv     # List backups of a file
  tabwatch diff old.csv new.csv -k name   # Compare two versions
  tabwatch log list                       # Show recent change log entries`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log to stderr as well as the log file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError("%v", err)
	}
	return err
}

// loadConfig loads configuration and initializes logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	if _, err := logging.ParseLevel(level); err != nil {
		return nil, err
	}

	consoleLevel := ""
	if flagVerbose {
		consoleLevel = level
	}

	rotation, err := rotationConfig(cfg.Logging.Rotation)
	if err != nil {
		return nil, err
	}

	err = logging.Init(logging.Config{
		Level:        level,
		Path:         cfg.Logging.Path,
		Rotation:     rotation,
		Components:   cfg.Logging.Components,
		ConsoleLevel: consoleLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}

	return cfg, nil
}

func rotationConfig(rc config.RotationConfig) (logging.RotationConfig, error) {
	out := logging.DefaultRotationConfig()
	if rc.MaxSize != "" {
		size, err := parseSize(rc.MaxSize)
		if err != nil {
			return out, fmt.Errorf("logging.rotation.max_size: %w", err)
		}
		out.MaxSize = size
	}
	if rc.MaxAge > 0 {
		out.MaxAge = rc.MaxAge
	}
	if rc.MaxBackups > 0 {
		out.MaxBackups = rc.MaxBackups
	}
	return out, nil
}

// dialectFromConfig builds the parsing dialect for watched files.
func dialectFromConfig(cfg *config.Config) table.Dialect {
	d := table.DefaultDialect()
	if cfg.Delimiter != "" {
		d.Delimiter = []rune(cfg.Delimiter)[0]
	}
	return d
}

// backupStoreFromConfig builds and initializes the backup store.
func backupStoreFromConfig(cfg *config.Config) (*backup.Store, error) {
	algo, err := checksum.Parse(cfg.Backup.Checksum)
	if err != nil {
		return nil, err
	}

	store, err := backup.New(backup.Options{
		Dir:              cfg.Backup.Dir,
		Algorithm:        algo,
		Compress:         cfg.Backup.Compress,
		CompressionLevel: cfg.Backup.CompressionLevel,
		Retention: backup.RetentionPolicy{
			MaxBackups: cfg.Backup.Retention.MaxBackups,
			MaxAge:     time.Duration(cfg.Backup.Retention.MaxAgeDays) * 24 * time.Hour,
			MinBackups: cfg.Backup.Retention.MinBackups,
		},
	})
	if err != nil {
		return nil, err
	}
	if err := store.Initialize(); err != nil {
		return nil, err
	}
	return store, nil
}

// validatorFromConfig builds the validation pipeline.
func validatorFromConfig(cfg *config.Config) *validate.Pipeline {
	return validate.New(validate.Options{
		Dialect:  dialectFromConfig(cfg),
		Strict:   cfg.Validation.Strict,
		ErrorCap: cfg.Validation.ErrorCap,
	})
}

// diffEngineFromConfig builds the diff engine.
func diffEngineFromConfig(cfg *config.Config) (*diff.Engine, error) {
	mode, ok := diff.ParseMode(cfg.Diff.Mode)
	if !ok {
		return nil, fmt.Errorf("unknown diff mode %q", cfg.Diff.Mode)
	}
	return diff.NewEngine(diff.Options{
		Mode:        mode,
		KeyColumns:  cfg.Diff.KeyColumns,
		DetectMoves: cfg.Diff.DetectMoves,
		MaxRows:     cfg.Diff.MaxRows,
		TopColumns:  cfg.Diff.TopColumns,
		Dialect:     dialectFromConfig(cfg),
	}), nil
}

// parseSize parses human sizes like "10MB" into bytes.
func parseSize(s string) (int64, error) {
	var n float64
	var unit string
	if _, err := fmt.Sscanf(s, "%f%s", &n, &unit); err != nil {
		if _, err := fmt.Sscanf(s, "%f", &n); err != nil {
			return 0, fmt.Errorf("invalid size %q", s)
		}
		unit = "B"
	}

	switch unit {
	case "B", "b", "":
		return int64(n), nil
	case "KB", "kb", "K", "k":
		return int64(n * 1024), nil
	case "MB", "mb", "M", "m":
		return int64(n * 1024 * 1024), nil
	case "GB", "gb", "G", "g":
		return int64(n * 1024 * 1024 * 1024), nil
	default:
		return 0, fmt.Errorf("invalid size unit %q", unit)
	}
}

// printInfo prints a message to stdout.
func printInfo(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
