package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var registryJSON bool

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Validate and print the step registry",
	Long: "Load the step registry (--registry, $STEP_REGISTRY or the embedded default), " +
		"validate it and print it.",
	RunE: runRegistry,
}

func init() {
	registryCmd.Flags().BoolVar(&registryJSON, "json", false, "Print JSON instead of YAML")
	rootCmd.AddCommand(registryCmd)
}

func runRegistry(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	registry, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	if registryJSON {
		return printJSON(cmd.OutOrStdout(), registry)
	}
	out, err := yaml.Marshal(registry)
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
