package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/bond-onboarding/internal/progress"
	"github.com/jonathan/bond-onboarding/internal/schemas"
)

var validateProgressPath string

var validateProgressCmd = &cobra.Command{
	Use:   "validate-progress",
	Short: "Validate a step progress document against its JSON schema",
	RunE:  runValidateProgress,
}

func init() {
	validateProgressCmd.Flags().StringVar(&validateProgressPath, "json", "", "Path to the document (required)")
	mustMarkRequired(validateProgressCmd, "json")
	rootCmd.AddCommand(validateProgressCmd)
}

func runValidateProgress(cmd *cobra.Command, _ []string) error {
	data, err := os.ReadFile(validateProgressPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", validateProgressPath, err)
	}

	if err := schemas.ValidateStepProgress(data); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Validation failed")
		return err
	}
	doc, err := progress.ParseDocument(data)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Validation failed")
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Validation passed (%d main steps)\n", len(doc.MainStepIDs()))
	return nil
}
