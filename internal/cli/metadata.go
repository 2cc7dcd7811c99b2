package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rshade/greenledger/internal/config"
	"github.com/rshade/greenledger/internal/metadata"
	"github.com/rshade/greenledger/internal/store"
)

// metadataFlags holds the calculation metadata fields shared by record and
// revise.
type metadataFlags struct {
	source      string
	factor      float64
	methodology string
	uncertainty float64
	method      string
	assumptions []string
	by          string
}

func (mf *metadataFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&mf.source, "source", "", "factor source: EU_DEFAULT, ACTUAL, HYBRID or CUSTOM")
	cmd.Flags().Float64Var(&mf.factor, "factor", 0, "emission factor value")
	cmd.Flags().StringVar(&mf.methodology, "methodology", "", "calculation methodology")
	cmd.Flags().Float64Var(&mf.uncertainty, "uncertainty", 0, "relative uncertainty in percent")
	cmd.Flags().StringVar(&mf.method, "uncertainty-method", "", "statistical, conservative or expert_judgment")
	cmd.Flags().StringArrayVar(&mf.assumptions, "assumption", nil,
		`documented assumption as "description:impact" with impact low, medium or high (repeatable)`)
	cmd.Flags().StringVar(&mf.by, "by", "", "author of the version")
}

func parseAssumptions(raw []string) ([]metadata.Assumption, error) {
	out := make([]metadata.Assumption, 0, len(raw))
	for _, r := range raw {
		i := strings.LastIndex(r, ":")
		if i <= 0 {
			return nil, fmt.Errorf("assumption %q: expected description:impact", r)
		}
		out = append(out, metadata.Assumption{
			Description: strings.TrimSpace(r[:i]),
			Impact:      metadata.Impact(strings.ToLower(strings.TrimSpace(r[i+1:]))),
		})
	}
	return out, nil
}

// NewMetadataRecordCmd creates the metadata record command.
func NewMetadataRecordCmd() *cobra.Command {
	var (
		mf   metadataFlags
		file string
	)

	cmd := &cobra.Command{
		Use:   "record <subject>",
		Short: "Record version 1 of a calculation's traceability metadata",
		Example: `  greenledger metadata record steel-import-2026Q1 --source EU_DEFAULT --factor 1.89 \
    --methodology "CBAM default values" --uncertainty 15 --uncertainty-method conservative \
    --assumption "Blast furnace route:high"

  # From a YAML document with the same fields
  greenledger metadata record steel-import-2026Q1 --file calculation.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var draft metadata.Draft
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("reading %s: %w", file, err)
				}
				if err = yaml.Unmarshal(data, &draft); err != nil {
					return fmt.Errorf("parsing %s: %w", file, err)
				}
			}
			draft.SubjectID = args[0]
			if err := mf.applyToDraft(cmd, &draft); err != nil {
				return err
			}

			m, err := metadata.NewRecord(draft, time.Now())
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), func(st store.Store, _ *config.Config) error {
				if appendErr := st.Metadata().Append(cmd.Context(), m); appendErr != nil {
					return fmt.Errorf("recording %s: %w", m.SubjectID, appendErr)
				}
				cmd.Printf("Recorded %s v%d (%s)\n", m.SubjectID, m.Version, m.Digest)
				return nil
			})
		},
	}

	mf.register(cmd)
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML document holding the metadata fields")

	return cmd
}

// applyToDraft overlays the flags that were given on d.
func (mf *metadataFlags) applyToDraft(cmd *cobra.Command, d *metadata.Draft) error {
	flags := cmd.Flags()
	if flags.Changed("source") {
		d.FactorSource = metadata.FactorSource(strings.ToUpper(mf.source))
	}
	if flags.Changed("factor") {
		d.FactorValue = mf.factor
	}
	if flags.Changed("methodology") {
		d.Methodology = mf.methodology
	}
	if flags.Changed("uncertainty") {
		u := mf.uncertainty
		d.UncertaintyPercent = &u
	}
	if flags.Changed("uncertainty-method") {
		d.UncertaintyMethod = metadata.UncertaintyMethod(mf.method)
	}
	if flags.Changed("assumption") {
		assumptions, err := parseAssumptions(mf.assumptions)
		if err != nil {
			return err
		}
		d.Assumptions = assumptions
	}
	if flags.Changed("by") {
		d.CreatedBy = mf.by
	}
	return nil
}

// NewMetadataReviseCmd creates the metadata revise command.
func NewMetadataReviseCmd() *cobra.Command {
	var (
		mf     metadataFlags
		status string
		reason string
	)

	cmd := &cobra.Command{
		Use:   "revise <subject>",
		Short: "Append a new version of a calculation's metadata",
		Long: `Appends the version after the latest one. Stored versions are never modified.

Changing the factor, its source or the methodology resets verification to
unverified unless --status is given. Verification moves are unverified to
pending, pending to verified or rejected, and rejected back to pending.`,
		Example: `  # Supplier data replaces the EU default
  greenledger metadata revise steel-import-2026Q1 --source ACTUAL --factor 1.42 \
    --reason "installation data received"

  # Send for third-party verification
  greenledger metadata revise steel-import-2026Q1 --status pending`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rev, err := mf.revision(cmd)
			if err != nil {
				return err
			}
			if status != "" {
				s := metadata.VerificationStatus(strings.ToLower(status))
				rev.VerificationStatus = &s
			}
			rev.Reason = reason

			ctx := cmd.Context()
			return withStore(ctx, func(st store.Store, _ *config.Config) error {
				prev, latestErr := st.Metadata().Latest(ctx, args[0])
				if latestErr != nil {
					return fmt.Errorf("loading %s: %w", args[0], latestErr)
				}
				next, reviseErr := metadata.Revise(prev, rev, time.Now())
				if reviseErr != nil {
					return reviseErr
				}
				if appendErr := st.Metadata().Append(ctx, next); appendErr != nil {
					return fmt.Errorf("revising %s: %w", args[0], appendErr)
				}
				cmd.Printf("Recorded %s v%d (%s, %s)\n", next.SubjectID, next.Version, next.VerificationStatus, next.Digest)
				return nil
			})
		},
	}

	mf.register(cmd)
	cmd.Flags().StringVar(&status, "status", "", "verification status: pending, verified or rejected")
	cmd.Flags().StringVar(&reason, "reason", "", "why the calculation changed")

	return cmd
}

// revision builds a Revision from the flags that were given.
func (mf *metadataFlags) revision(cmd *cobra.Command) (metadata.Revision, error) {
	var d metadata.Draft
	if err := mf.applyToDraft(cmd, &d); err != nil {
		return metadata.Revision{}, err
	}
	flags := cmd.Flags()
	rev := metadata.Revision{By: d.CreatedBy}
	if flags.Changed("source") {
		rev.FactorSource = &d.FactorSource
	}
	if flags.Changed("factor") {
		rev.FactorValue = &d.FactorValue
	}
	if flags.Changed("methodology") {
		rev.Methodology = &d.Methodology
	}
	rev.UncertaintyPercent = d.UncertaintyPercent
	if flags.Changed("uncertainty-method") {
		rev.UncertaintyMethod = &d.UncertaintyMethod
	}
	if flags.Changed("assumption") {
		rev.Assumptions = &d.Assumptions
	}
	return rev, nil
}

// NewMetadataHistoryCmd creates the metadata history command.
func NewMetadataHistoryCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "history <subject>",
		Short: "Show every version of a calculation's metadata and verify the chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := resolveOutputFormat(output)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return withStore(ctx, func(st store.Store, _ *config.Config) error {
				history, historyErr := st.Metadata().History(ctx, args[0])
				if historyErr != nil {
					return fmt.Errorf("loading %s: %w", args[0], historyErr)
				}
				chainErr := metadata.VerifyChain(history)
				if chainErr != nil {
					logger.Warn().Ctx(ctx).Err(chainErr).Str("subject", args[0]).Msg("metadata chain does not verify")
				}
				if renderErr := renderHistory(cmd.OutOrStdout(), format, history, chainErr); renderErr != nil {
					return renderErr
				}
				return chainErr
			})
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "output format: table, json or ndjson")

	return cmd
}
