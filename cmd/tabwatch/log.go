package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tabwatch/tabwatch/pkg/pipeline/changelog"
	"github.com/tabwatch/tabwatch/pkg/tabwatch/logging"
)

var (
	flagLogPath  string
	flagLogLimit int
	flagLogJSON  bool

	flagExportFormat string
	flagExportOutput string
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Query and export the change log",
}

var logListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show change log entries, newest first",
	Args:  cobra.NoArgs,
	RunE:  runLogList,
}

var logExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the full change log as JSON or CSV",
	Args:  cobra.NoArgs,
	RunE:  runLogExport,
}

func init() {
	logListCmd.Flags().StringVar(&flagLogPath, "path", "", "only entries for this originating file")
	logListCmd.Flags().IntVar(&flagLogLimit, "limit", 20, "maximum number of entries (0 = all)")
	logListCmd.Flags().BoolVar(&flagLogJSON, "json", false, "print entries as JSON")

	logExportCmd.Flags().StringVar(&flagExportFormat, "format", "json", "export format: json or csv")
	logExportCmd.Flags().StringVarP(&flagExportOutput, "output", "o", "", "write to this file instead of stdout")

	logCmd.AddCommand(logListCmd, logExportCmd)
	rootCmd.AddCommand(logCmd)
}

func openChangelog() (*changelog.Log, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return changelog.Open(cfg.LogDir)
}

func runLogList(cmd *cobra.Command, args []string) error {
	cl, err := openChangelog()
	if err != nil {
		return err
	}
	defer cl.Close()
	defer logging.Close()

	var entries []changelog.Entry
	if flagLogPath != "" {
		entries, err = cl.ByPath(flagLogPath, flagLogLimit)
	} else {
		entries, err = cl.Recent(flagLogLimit)
	}
	if err != nil {
		return err
	}

	if flagLogJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		printInfo("change log is empty")
		return nil
	}

	for _, e := range entries {
		detail := ""
		if e.Metadata != nil {
			if e.Metadata.BackupID != "" {
				detail += "  backup=" + e.Metadata.BackupID
			}
			if e.Metadata.Valid != nil {
				detail += fmt.Sprintf("  valid=%t errors=%d warnings=%d",
					*e.Metadata.Valid, e.Metadata.ErrorCount, e.Metadata.WarningCount)
			}
		}
		printInfo("#%-5d %s  %-8s %s%s",
			e.Seq, e.Event.Timestamp.Format("2006-01-02 15:04:05"),
			e.Event.Kind, e.Event.Path, detail)
	}
	return nil
}

func runLogExport(cmd *cobra.Command, args []string) error {
	cl, err := openChangelog()
	if err != nil {
		return err
	}
	defer cl.Close()
	defer logging.Close()

	out := os.Stdout
	if flagExportOutput != "" {
		f, err := os.Create(flagExportOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	switch flagExportFormat {
	case "json":
		return cl.ExportJSON(out)
	case "csv":
		return cl.ExportCSV(out)
	default:
		return fmt.Errorf("unknown export format %q (want json or csv)", flagExportFormat)
	}
}
