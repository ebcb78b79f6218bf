package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tabwatch/tabwatch/pkg/pipeline/changelog"
	"github.com/tabwatch/tabwatch/pkg/pipeline/monitor"
	"github.com/tabwatch/tabwatch/pkg/pipeline/orchestrator"
	"github.com/tabwatch/tabwatch/pkg/tabwatch/checksum"
	"github.com/tabwatch/tabwatch/pkg/tabwatch/logging"
)

var watchCmd = &cobra.Command{
	Use:   "watch <file>...",
	Short: "Run the full change-management pipeline on one or more files",
	Long: `Watch one or more delimited data files and react to every change:
back up, validate, log, and diff according to the configured policy.

Runs until interrupted. Status is printed on shutdown.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logging.Close()

	algo, err := checksum.Parse(cfg.Backup.Checksum)
	if err != nil {
		return err
	}

	mon, err := monitor.New(monitor.Options{
		Debounce:  time.Duration(cfg.DebounceMillis) * time.Millisecond,
		Algorithm: algo,
	})
	if err != nil {
		return fmt.Errorf("starting monitor: %w", err)
	}
	defer mon.Close()

	store, err := backupStoreFromConfig(cfg)
	if err != nil {
		return err
	}

	differ, err := diffEngineFromConfig(cfg)
	if err != nil {
		return err
	}

	cl, err := changelog.Open(cfg.LogDir)
	if err != nil {
		return err
	}
	defer cl.Close()

	orch, err := orchestrator.New(orchestrator.Options{
		Policy: orchestrator.Policy{
			AutoBackup:                cfg.AutoBackup,
			AutoValidate:              cfg.AutoValidate,
			BackupOnValidationFailure: cfg.BackupOnValidationFailure,
			DiffEnabled:               cfg.DiffEnabled,
			CompareWithBackups:        cfg.CompareWithBackups,
			ReportFormats:             cfg.Report.Formats,
			ReportDir:                 cfg.Report.Dir,
		},
		Monitor:   mon,
		Backups:   store,
		Validator: validatorFromConfig(cfg),
		Differ:    differ,
		Changelog: cl,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := orch.Start(ctx); err != nil {
		return err
	}

	for _, path := range args {
		if err := orch.Watch(path); err != nil {
			orch.Stop()
			return err
		}
		printInfo("watching %s", path)
	}

	<-ctx.Done()
	printInfo("shutting down...")
	orch.Stop()

	status := orch.Status()
	printInfo("handled %d change(s)", status.ChangeCount)
	if !status.LastChange.IsZero() {
		printInfo("last change: %s", status.LastChange.Format(time.RFC3339))
	}
	if len(status.RecentErrors) > 0 {
		printInfo("%d error(s) recorded; see the log for details", len(status.RecentErrors))
	}
	return nil
}
