package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tabwatch/tabwatch/pkg/tabwatch/logging"
	"github.com/tabwatch/tabwatch/pkg/tabwatch/validate"
)

var (
	flagValidateJSON bool
	flagValidateLat  string
	flagValidateLon  string
	flagRequired     []string
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a file's structure and content",
	Long: `Validate a delimited data file on demand: structural checks,
registered field validators, and derived metadata.

Exits non-zero when validation fails.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&flagValidateJSON, "json", false, "print the full result as JSON")
	validateCmd.Flags().StringVar(&flagValidateLat, "latitude-column", "", "validate this column as a latitude")
	validateCmd.Flags().StringVar(&flagValidateLon, "longitude-column", "", "validate this column as a longitude")
	validateCmd.Flags().StringSliceVar(&flagRequired, "required", nil, "columns that must be non-empty in every row")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logging.Close()

	pipeline := validatorFromConfig(cfg)
	if flagValidateLat != "" {
		if err := pipeline.RegisterValidator(validate.LatitudeValidator(flagValidateLat)); err != nil {
			return err
		}
	}
	if flagValidateLon != "" {
		if err := pipeline.RegisterValidator(validate.LongitudeValidator(flagValidateLon)); err != nil {
			return err
		}
	}
	if len(flagRequired) > 0 {
		if err := pipeline.RegisterValidator(validate.RequiredValidator(flagRequired...)); err != nil {
			return err
		}
	}

	result, err := pipeline.ValidateFile(args[0])
	if err != nil {
		return err
	}

	if flagValidateJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		printValidation(args[0], result)
	}

	if !result.IsValid {
		return fmt.Errorf("%s is not valid (%d error(s))", args[0], len(result.Errors))
	}
	return nil
}

func printValidation(path string, r *validate.Result) {
	verdict := "VALID"
	if !r.IsValid {
		verdict = "INVALID"
	}
	printInfo("%s: %s (%d rows, %d columns)", path, verdict, r.RowCount, len(r.Headers))

	for _, f := range r.Errors {
		printFinding(f)
	}
	for _, f := range r.Warnings {
		printFinding(f)
	}

	if r.Metadata != nil {
		if r.Metadata.EmptyRows > 0 {
			printInfo("  %d empty row(s)", r.Metadata.EmptyRows)
		}
		if r.Metadata.DuplicateRows > 0 {
			printInfo("  %d duplicate row(s)", r.Metadata.DuplicateRows)
		}
	}
}

func printFinding(f validate.Finding) {
	location := ""
	if f.Row >= 0 {
		location = fmt.Sprintf(" (row %d", f.Row)
		if f.Column != "" {
			location += ", column " + f.Column
		}
		location += ")"
	}
	printInfo("  [%s] %s: %s%s", f.Severity, f.Code, f.Message, location)
}
