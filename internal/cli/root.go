package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rshade/greenledger/internal/config"
	"github.com/rshade/greenledger/internal/logging"
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Required for zerolog context integration

// NewRootCmd creates the root Cobra command for the greenledger CLI.
// It resolves the project directory, loads configuration, wires up logging
// and registers the entries, report, scoring, metadata, serve and config
// command groups.
func NewRootCmd(ver string) *cobra.Command {
	var (
		logResult  *logging.LogPathResult
		projectDir string
	)

	cmd := &cobra.Command{
		Use:     "greenledger",
		Short:   "Carbon accounting and ESG scoring",
		Long:    "greenledger: record activity data, aggregate GHG emissions by scope and score compliance, sector performance and ESG",
		Version: ver,
		Example: rootCmdExample,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			startDir, err := os.Getwd()
			if err != nil {
				startDir = "."
			}
			resolved := config.ResolveProjectDir(ctx, projectDir, startDir)
			config.SetResolvedProjectDir(resolved)
			config.InitGlobalConfigWithProjectDir(ctx, resolved)

			result := setupLogging(cmd)
			logResult = &result
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return cleanupLogging(logResult)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&projectDir, "project-dir", "",
		"project directory holding .greenledger/ (default: discovered from the working directory)")

	cmd.AddCommand(
		newEntriesCmd(),
		NewReportCmd(),
		NewComplianceCmd(),
		newScoreCmd(),
		NewUncertaintyCmd(),
		newMetadataCmd(),
		NewServeCmd(),
		newConfigCmd(),
	)

	return cmd
}

const rootCmdExample = `  # Record a natural gas invoice
  greenledger entries add --scope scope1 --category Chauffage --quantity 12000 --unit kWh --factor 0.227

  # Import a spreadsheet export and an OCR payload
  greenledger entries import activity.csv
  greenledger entries import --ocr invoice-ocr.json

  # Full report for a services company with 850 k€ revenue
  greenledger report --revenue-k 850 --sector services

  # Same report as JSON
  greenledger report --revenue-k 850 --sector services --output json

  # Serve the HTTP API
  greenledger serve --addr 127.0.0.1:8080`

// newEntriesCmd creates the entries command group.
func newEntriesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "entries", Short: "Activity entry management commands"}
	cmd.AddCommand(
		NewEntriesAddCmd(), NewEntriesListCmd(), NewEntriesDeleteCmd(),
		NewEntriesPurgeCmd(), NewEntriesImportCmd(), NewEntriesValidateCmd(),
	)
	return cmd
}

// newScoreCmd creates the score command group.
func newScoreCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "score", Short: "Sector and ESG scoring commands"}
	cmd.AddCommand(NewScoreSectorCmd(), NewScoreESGCmd())
	return cmd
}

// newMetadataCmd creates the metadata command group.
func newMetadataCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "metadata", Short: "Calculation traceability commands"}
	cmd.AddCommand(NewMetadataRecordCmd(), NewMetadataReviseCmd(), NewMetadataHistoryCmd())
	return cmd
}

// newConfigCmd creates the config command group with configuration subcommands.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration management commands"}
	cmd.AddCommand(NewConfigInitCmd(), NewConfigValidateCmd())
	return cmd
}
