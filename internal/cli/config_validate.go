package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/greenledger/internal/config"
	"github.com/rshade/greenledger/internal/reference"
)

// NewConfigValidateCmd creates the config validate command for validating configuration.
func NewConfigValidateCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Long: `Validates the effective configuration: the global file, the project overlay
and GREENLEDGER_* environment variables.

This includes:
- Output, logging, storage and server settings
- Scoring settings: GWP table, coverage factor, unknown-uncertainty policy and ESG weights
- The reference dataset and its version constraint`,
		Example: `  # Validate current configuration
  greenledger config validate

  # Validate and show detailed information
  greenledger config validate --verbose`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigValidate(cmd, verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show detailed validation information")

	return cmd
}

// runConfigValidate executes the configuration validation logic.
func runConfigValidate(cmd *cobra.Command, verbose bool) error {
	cfg := config.GetGlobalConfig()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	dataset, err := reference.Load(cfg.Reference.Path, cfg.Reference.Constraint)
	if err != nil {
		return fmt.Errorf("reference dataset validation failed: %w", err)
	}

	cmd.Printf("Configuration is valid\n")

	if verbose {
		printVerboseDetails(cmd, cfg, dataset)
	}

	return nil
}

// printVerboseDetails prints detailed configuration information.
func printVerboseDetails(cmd *cobra.Command, cfg *config.Config, dataset *reference.Dataset) {
	cmd.Println()
	cmd.Println("Configuration details:")
	if project := config.GetResolvedProjectDir(); project != "" {
		cmd.Printf("  Project: %s\n", project)
	}
	cmd.Printf("  Output format: %s\n", cfg.Output.DefaultFormat)
	cmd.Printf("  Output precision: %d\n", cfg.Output.Precision)
	cmd.Printf("  Logging level: %s\n", cfg.Logging.Level)
	cmd.Printf("  Log file: %s\n", cfg.Logging.File)
	cmd.Printf("  Storage: %s %s\n", cfg.Storage.Driver, cfg.Storage.DSN)
	cmd.Printf("  Server address: %s\n", cfg.Server.Addr)

	s := cfg.Scoring
	cmd.Printf("  GWP set: %s\n", s.GWPSet)
	cmd.Printf("  Coverage factor: %g\n", s.CoverageFactor)
	cmd.Printf("  Unknown uncertainty: %s\n", s.UnknownUncertainty)
	cmd.Printf("  Include drafts: %t\n", s.IncludeDrafts)
	cmd.Printf("  ESG weights: E=%g S=%g G=%g\n", s.ESGWeights.Environment, s.ESGWeights.Social, s.ESGWeights.Governance)

	cmd.Printf("  Reference data: %s (v%s)\n", dataset.Source, dataset.Version)
	cmd.Printf("    Sectors: %d\n", len(dataset.Benchmarks))
	cmd.Printf("    Compliance categories: %d\n", dataset.Taxonomy.Len())
}
