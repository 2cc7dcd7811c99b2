package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rshade/greenledger/internal/config"
	"github.com/rshade/greenledger/internal/greenops"
	"github.com/rshade/greenledger/internal/ingest"
	"github.com/rshade/greenledger/internal/store"
)

type entryFlags struct {
	id          string
	scope       string
	category    string
	subcategory string
	description string
	quantity    float64
	unit        string
	factor      float64
	factorUnit  string
	factorSrc   string
	gas         string
	uncertainty float64
}

// NewEntriesAddCmd creates the entries add command.
func NewEntriesAddCmd() *cobra.Command {
	var f entryFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record one activity entry",
		Example: `  # 12 000 kWh of natural gas at 0.227 kgCO2e/kWh, ±5 %
  greenledger entries add --scope scope1 --category Chauffage --quantity 12000 --unit kWh \
    --factor 0.227 --uncertainty 5

  # A refrigerant leak, factor in tonnes of HFC-134a
  greenledger entries add --scope 1 --category "Émissions fugitives" --quantity 2 --unit kg \
    --factor 0.001 --factor-unit t --gas HFC-134a`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entry, err := f.entry(cmd)
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), func(st store.Store, cfg *config.Config) error {
				added, addErr := st.Entries().Add(cmd.Context(), entry)
				if addErr != nil {
					return fmt.Errorf("adding entry: %w", addErr)
				}
				e := added[0]
				cmd.Printf("Added %s: %s %s\n", e.ID, e.Scope,
					greenops.FormatFloat(e.Emissions(), cfg.Output.Precision)+" "+e.FactorUnit())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&f.id, "id", "", "entry ID (default: generated)")
	cmd.Flags().StringVar(&f.scope, "scope", "", "GHG Protocol scope: scope1, scope2 or scope3 (required)")
	cmd.Flags().StringVar(&f.category, "category", "", "activity category (required)")
	cmd.Flags().StringVar(&f.subcategory, "subcategory", "", "activity subcategory")
	cmd.Flags().StringVar(&f.description, "description", "", "free-text description")
	cmd.Flags().Float64Var(&f.quantity, "quantity", 0, "activity quantity")
	cmd.Flags().StringVar(&f.unit, "unit", "", "activity unit, for example kWh, L or km")
	cmd.Flags().Float64Var(&f.factor, "factor", 0, "emission factor per activity unit")
	cmd.Flags().StringVar(&f.factorUnit, "factor-unit", "kg", "mass unit of the emission factor (g, kg, t)")
	cmd.Flags().StringVar(&f.factorSrc, "factor-source", "", "where the emission factor comes from")
	cmd.Flags().StringVar(&f.gas, "gas", "", "greenhouse gas (default CO2)")
	cmd.Flags().Float64Var(&f.uncertainty, "uncertainty", 0, "relative uncertainty in percent")
	_ = cmd.MarkFlagRequired("scope")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

// entry builds the entry from the flags. Uncertainty is recorded only when
// the flag was given, so an unset flag stays unknown rather than zero.
func (f *entryFlags) entry(cmd *cobra.Command) (greenops.ActivityEntry, error) {
	scope, err := greenops.ParseScope(f.scope)
	if err != nil {
		return greenops.ActivityEntry{}, err
	}
	e := greenops.ActivityEntry{
		ID:                   f.id,
		Scope:                scope,
		Category:             f.category,
		Subcategory:          f.subcategory,
		Description:          f.description,
		Quantity:             f.quantity,
		Unit:                 f.unit,
		EmissionFactorValue:  f.factor,
		EmissionFactorUnit:   f.factorUnit,
		EmissionFactorSource: f.factorSrc,
		Status:               greenops.StatusValidated,
	}
	if f.gas != "" {
		if e.Gas, err = greenops.ParseGas(f.gas); err != nil {
			return greenops.ActivityEntry{}, err
		}
	}
	if cmd.Flags().Changed("uncertainty") {
		u := f.uncertainty
		e.UncertaintyPercent = &u
	}
	return e, e.Validate()
}

// NewEntriesListCmd creates the entries list command.
func NewEntriesListCmd() *cobra.Command {
	var (
		scope  string
		status string
		output string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List activity entries",
		Example: `  # Every entry
  greenledger entries list

  # OCR drafts awaiting validation, as JSON
  greenledger entries list --status draft --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := resolveOutputFormat(output)
			if err != nil {
				return err
			}
			filter := store.Filter{Status: greenops.EntryStatus(status)}
			if scope != "" {
				if filter.Scope, err = greenops.ParseScope(scope); err != nil {
					return err
				}
			}
			switch filter.Status {
			case "", greenops.StatusDraft, greenops.StatusValidated:
			default:
				return fmt.Errorf("unsupported status %q", status)
			}
			return withStore(cmd.Context(), func(st store.Store, cfg *config.Config) error {
				entries, listErr := st.Entries().List(cmd.Context(), filter)
				if listErr != nil {
					return fmt.Errorf("listing entries: %w", listErr)
				}
				return renderEntries(cmd.OutOrStdout(), format, entries, cfg.Output.Precision)
			})
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "", "only entries of this scope")
	cmd.Flags().StringVar(&status, "status", "", "only entries with this status: validated or draft")
	cmd.Flags().StringVar(&output, "output", "", "output format: table, json or ndjson")

	return cmd
}

// NewEntriesDeleteCmd creates the entries delete command.
func NewEntriesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete activity entries by ID",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(st store.Store, _ *config.Config) error {
				var errs []error
				for _, id := range args {
					if err := st.Entries().Delete(cmd.Context(), id); err != nil {
						errs = append(errs, fmt.Errorf("deleting %s: %w", id, err))
						continue
					}
					cmd.Printf("Deleted %s\n", id)
				}
				return errors.Join(errs...)
			})
		},
	}
}

// NewEntriesPurgeCmd creates the entries purge command.
func NewEntriesPurgeCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every activity entry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				if !isTerminal(os.Stdin) {
					return errors.New("refusing to purge without --yes in a non-interactive session")
				}
				if !Confirm(cmd.OutOrStdout(), cmd.InOrStdin(), "Delete every activity entry?").Accepted {
					cmd.Println("Aborted")
					return nil
				}
			}
			return withStore(cmd.Context(), func(st store.Store, _ *config.Config) error {
				n, err := st.Entries().Purge(cmd.Context())
				if err != nil {
					return fmt.Errorf("purging entries: %w", err)
				}
				cmd.Printf("Deleted %d entries\n", n)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	return cmd
}

// NewEntriesImportCmd creates the entries import command.
func NewEntriesImportCmd() *cobra.Command {
	var (
		ocr           bool
		minConfidence float64
		defaultScope  string
		batchSize     int
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import entries from a YAML, JSON or CSV file, or an OCR payload",
		Long: `Imports activity entries in batches. Each batch is written atomically; when a
batch fails the import stops and the batches already written are kept.

With --ocr the file is the JSON result of the invoice OCR function. Every line
becomes a draft entry that counts toward totals only once validated with
"greenledger entries validate".`,
		Example: `  # Spreadsheet export
  greenledger entries import activity.csv

  # OCR payload, dropping lines scored below 0.8
  greenledger entries import --ocr --min-confidence 0.8 invoice.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var entries []greenops.ActivityEntry
			if ocr {
				scope, err := greenops.ParseScope(defaultScope)
				if err != nil {
					return err
				}
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("reading OCR payload: %w", err)
				}
				res, err := ingest.ParseOCRResult(ctx, data, ingest.OCROptions{MinConfidence: minConfidence, DefaultScope: scope})
				if err != nil {
					return err
				}
				for _, reason := range res.Skipped {
					cmd.PrintErrf("Skipped: %s\n", reason)
				}
				entries = res.Entries
			} else {
				var err error
				if entries, err = ingest.LoadEntries(ctx, args[0]); err != nil {
					return err
				}
			}

			return withStore(ctx, func(st store.Store, cfg *config.Config) error {
				size := batchSize
				if size == 0 {
					size = cfg.Storage.BatchSize
				}
				importer, err := ingest.NewImporter(st.Entries(), size)
				if err != nil {
					return err
				}
				importer.WithProgress(func(p ingest.Progress) {
					cmd.PrintErrf("Imported batch %d/%d (%s)\n", p.ProcessedBatches, p.TotalBatches,
						greenops.FormatPercent(p.PercentComplete(), 0))
				})
				summary, err := importer.Import(ctx, entries)
				if err != nil {
					return fmt.Errorf("import stopped after %d entries: %w", len(summary.Imported), err)
				}
				drafts := 0
				for _, e := range summary.Imported {
					if e.IsDraft() {
						drafts++
					}
				}
				cmd.Printf("Imported %d entries in %d batches", len(summary.Imported), summary.Batches)
				if drafts > 0 {
					cmd.Printf(" (%d drafts awaiting validation)", drafts)
				}
				cmd.Println()
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&ocr, "ocr", false, "treat the file as an OCR JSON payload")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "with --ocr, skip lines below this confidence (0..1)")
	cmd.Flags().StringVar(&defaultScope, "default-scope", string(greenops.Scope3), "with --ocr, scope of lines that name none")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "entries per batch (default: storage.batch_size)")

	return cmd
}

// NewEntriesValidateCmd creates the entries validate command.
func NewEntriesValidateCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "validate [id]...",
		Short: "Confirm OCR draft entries so they count toward reporting",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return errors.New("name at least one entry or pass --all")
			}
			ctx := cmd.Context()
			return withStore(ctx, func(st store.Store, _ *config.Config) error {
				ids := args
				if all {
					drafts, err := st.Entries().List(ctx, store.Filter{Status: greenops.StatusDraft})
					if err != nil {
						return fmt.Errorf("listing drafts: %w", err)
					}
					ids = make([]string, 0, len(drafts))
					for _, d := range drafts {
						ids = append(ids, d.ID)
					}
				}
				validated := 0
				for _, id := range ids {
					e, err := st.Entries().Get(ctx, id)
					if err != nil {
						return fmt.Errorf("validating %s: %w", id, err)
					}
					if !e.IsDraft() {
						continue
					}
					e.Status = greenops.StatusValidated
					if _, err = st.Entries().Update(ctx, e); err != nil {
						return fmt.Errorf("validating %s: %w", id, err)
					}
					validated++
				}
				cmd.Printf("Validated %d entries\n", validated)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "validate every draft")

	return cmd
}
