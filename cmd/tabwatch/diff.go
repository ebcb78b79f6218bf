package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tabwatch/tabwatch/pkg/tabwatch/config"
	"github.com/tabwatch/tabwatch/pkg/tabwatch/diff"
	"github.com/tabwatch/tabwatch/pkg/tabwatch/logging"
	"github.com/tabwatch/tabwatch/pkg/tabwatch/report"
)

var (
	flagDiffMode        string
	flagDiffKeys        []string
	flagDiffMoves       bool
	flagDiffFormat      string
	flagDiffOutput      string
	flagDiffBackup      bool
	flagDiffIgnoreCase  bool
	flagDiffIgnoreSpace bool
	flagDiffInclude     []string
	flagDiffExclude     []string
	flagDiffTypes       []string
)

var diffCmd = &cobra.Command{
	Use:   "diff <old> <new>",
	Short: "Compare two versions of a file",
	Long: `Compare two versions of a delimited data file and render the result.

The old side can be a file path or, with --backup, a backup id.

Examples:
  tabwatch diff old.csv new.csv --key name
  tabwatch diff old.csv new.csv --mode text
  tabwatch diff 6e1f... data/shops.csv --backup
  tabwatch diff old.csv new.csv --format markdown --output report.md`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().StringVar(&flagDiffMode, "mode", "", "comparison mode: text, schema, structured, or hybrid")
	diffCmd.Flags().StringSliceVarP(&flagDiffKeys, "key", "k", nil, "key columns identifying rows across versions")
	diffCmd.Flags().BoolVar(&flagDiffMoves, "detect-moves", true, "classify relocated identical rows as moves")
	diffCmd.Flags().StringVar(&flagDiffFormat, "format", "console", "report format: console, html, json, or markdown")
	diffCmd.Flags().StringVarP(&flagDiffOutput, "output", "o", "", "also write the report to this file")
	diffCmd.Flags().BoolVar(&flagDiffBackup, "backup", false, "treat <old> as a backup id")
	diffCmd.Flags().BoolVar(&flagDiffIgnoreCase, "ignore-case", false, "drop cell changes differing only by case")
	diffCmd.Flags().BoolVar(&flagDiffIgnoreSpace, "ignore-whitespace", false, "drop cell changes differing only by whitespace")
	diffCmd.Flags().StringSliceVar(&flagDiffInclude, "include-columns", nil, "keep cell changes in these columns only")
	diffCmd.Flags().StringSliceVar(&flagDiffExclude, "exclude-columns", nil, "drop cell changes in these columns")
	diffCmd.Flags().StringSliceVar(&flagDiffTypes, "change-types", nil, "keep row changes of these types only")
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logging.Close()

	if flagDiffMode != "" {
		cfg.Diff.Mode = flagDiffMode
	}
	if len(flagDiffKeys) > 0 {
		cfg.Diff.KeyColumns = flagDiffKeys
	}
	cfg.Diff.DetectMoves = flagDiffMoves

	engine, err := diffEngineFromConfig(cfg)
	if err != nil {
		return err
	}

	oldPath := args[0]
	if flagDiffBackup {
		oldPath, err = stageBackupContent(cfg, args[0])
		if err != nil {
			return err
		}
	}

	result, err := engine.CompareFiles(oldPath, args[1])
	if err != nil {
		return err
	}
	if flagDiffBackup {
		result.OldPath = "backup:" + args[0]
	}

	if hasDiffFilters() {
		types := make([]diff.ChangeType, len(flagDiffTypes))
		for i, t := range flagDiffTypes {
			types[i] = diff.ChangeType(t)
		}
		result = diff.Apply(result, diff.FilterOptions{
			IgnoreCase:       flagDiffIgnoreCase,
			IgnoreWhitespace: flagDiffIgnoreSpace,
			IncludeColumns:   flagDiffInclude,
			ExcludeColumns:   flagDiffExclude,
			ChangeTypes:      types,
		}, cfg.Diff.TopColumns)
	}

	var text string
	if flagDiffOutput != "" {
		text, err = report.RenderToFile(result, flagDiffFormat, flagDiffOutput)
	} else {
		text, err = report.Render(result, flagDiffFormat)
	}
	if err != nil {
		return err
	}

	fmt.Print(text)
	return nil
}

// stageBackupContent writes a backup's decompressed payload to a temp
// file so it can be compared like any other file.
func stageBackupContent(cfg *config.Config, id string) (string, error) {
	store, err := backupStoreFromConfig(cfg)
	if err != nil {
		return "", err
	}

	content, err := store.Content(id)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp("", "tabwatch-backup-*.csv")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return "", err
	}
	return tmp.Name(), tmp.Close()
}

func hasDiffFilters() bool {
	return flagDiffIgnoreCase || flagDiffIgnoreSpace ||
		len(flagDiffInclude) > 0 || len(flagDiffExclude) > 0 || len(flagDiffTypes) > 0
}
