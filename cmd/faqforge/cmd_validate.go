package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"faqforge/internal/export"
	"faqforge/internal/quality"
)

var reportPath string

// validateCmd checks an existing dataset file against the quality rules.
var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate an existing FAQ dataset file",
	Long: `Validates the records in a JSON dataset file against the quality
rules resolved from configuration. The file may be a bare record array or
the metadata envelope produced by generate.

Exits nonzero when any record fails a hard rule.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&reportPath, "report", "", "write a JSON quality report to this path")
}

func runValidate(cmd *cobra.Command, args []string) error {
	doc, err := resolveDocument()
	if err != nil {
		return err
	}

	records, err := export.ReadDataset(args[0])
	if err != nil {
		return err
	}

	validator, err := quality.New(quality.RulesFromConfig(doc))
	if err != nil {
		return err
	}
	report := validator.Validate(records)

	rejected := report.Rejected()
	fmt.Printf("Validated %d records: %d valid, %d rejected, %d warnings\n",
		report.Total, len(report.Accepted()), len(rejected), report.WarningCount())
	for _, res := range rejected {
		fmt.Printf("  rejected %q: %s\n", truncate(res.Record.Question, 60),
			strings.Join(res.HardReasons(), ", "))
	}

	if reportPath != "" {
		writer := export.New(filepath.Dir(reportPath))
		if _, err := writer.WriteQualityReport(report, filepath.Base(reportPath)); err != nil {
			return err
		}
		fmt.Printf("Quality report written to %s\n", reportPath)
	}

	if len(rejected) > 0 {
		return fmt.Errorf("%d of %d records failed validation", len(rejected), report.Total)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
