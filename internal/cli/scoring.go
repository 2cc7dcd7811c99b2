package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/greenledger/internal/engine"
	"github.com/rshade/greenledger/internal/greenops"
	"github.com/rshade/greenledger/internal/store"
	"github.com/rshade/greenledger/internal/uncertainty"
)

// NewComplianceCmd creates the compliance command.
func NewComplianceCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "compliance",
		Short: "Show which reporting categories have evidence",
		Long: `Scores reporting completeness: a category is filled when at least one
validated entry of its scope mentions one of its keywords. The score is the
filled share of categories, rounded to an integer.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := resolveOutputFormat(output)
			if err != nil {
				return err
			}
			return withSession(cmd.Context(), func(sess *session) error {
				report, computeErr := computeReport(cmd.Context(), sess, engine.Params{})
				if computeErr != nil {
					return computeErr
				}
				return renderCompliance(cmd.OutOrStdout(), format, report.Compliance)
			})
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "output format: table, json or ndjson")

	return cmd
}

// NewScoreSectorCmd creates the score sector command.
func NewScoreSectorCmd() *cobra.Command {
	var (
		pf     paramFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "sector",
		Short: "Grade carbon intensity against the sector benchmark",
		Example: `  greenledger score sector --revenue-k 1200 --sector manufacturing`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := resolveOutputFormat(output)
			if err != nil {
				return err
			}
			p, err := pf.params(cmd)
			if err != nil {
				return err
			}
			return withSession(cmd.Context(), func(sess *session) error {
				report, computeErr := computeReport(cmd.Context(), sess, p)
				if computeErr != nil {
					return computeErr
				}
				return renderSector(cmd.OutOrStdout(), format, report.Sector, sess.cfg.Output.Precision)
			})
		},
	}

	pf.register(cmd, false)
	cmd.Flags().StringVar(&output, "output", "", "output format: table, json or ndjson")

	return cmd
}

// NewScoreESGCmd creates the score esg command.
func NewScoreESGCmd() *cobra.Command {
	var (
		pf     paramFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "esg",
		Short: "Score the environmental, social and governance pillars",
		Long: `Scores each pillar from the indicators it has data for and combines the
pillars with the configured weights. The composite needs data in every
pillar; total emissions default to the stored entries.`,
		Example: `  greenledger score esg --revenue-k 850 --sector services \
    --indicators gender_pay_gap=4,board_independence=60,anti_corruption_policy=true`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := resolveOutputFormat(output)
			if err != nil {
				return err
			}
			p, err := pf.params(cmd)
			if err != nil {
				return err
			}
			return withSession(cmd.Context(), func(sess *session) error {
				report, computeErr := computeReport(cmd.Context(), sess, p)
				if computeErr != nil {
					return computeErr
				}
				return renderESG(cmd.OutOrStdout(), format, report.ESG, sess.cfg.Output.Precision)
			})
		},
	}

	pf.register(cmd, true)
	cmd.Flags().StringVar(&output, "output", "", "output format: table, json or ndjson")

	return cmd
}

// NewUncertaintyCmd creates the uncertainty command.
func NewUncertaintyCmd() *cobra.Command {
	var (
		output string
		k      float64
		policy string
	)

	cmd := &cobra.Command{
		Use:   "uncertainty",
		Short: "Combine entry uncertainties into expanded uncertainty bands",
		Long: `Propagates entry uncertainties per scope by root-sum-of-squares and expands
them with the coverage factor k (U = k × u_c). Entries without an uncertainty
figure count as zero or, with --policy invalidate, make the command fail.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := resolveOutputFormat(output)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return withSession(ctx, func(sess *session) error {
				scoring := sess.cfg.Scoring
				opts := uncertainty.Options{
					CoverageFactor: scoring.CoverageFactor,
					IncludeDrafts:  scoring.IncludeDrafts,
				}
				if cmd.Flags().Changed("k") {
					opts.CoverageFactor = k
				}
				rawPolicy := scoring.UnknownUncertainty
				if policy != "" {
					rawPolicy = policy
				}
				if opts.Policy, err = uncertainty.ParsePolicy(rawPolicy); err != nil {
					return err
				}
				gwp, err := greenops.LookupGWPTable(scoring.GWPSet)
				if err != nil {
					return err
				}

				entries, err := sess.store.Entries().List(ctx, store.Filter{})
				if err != nil {
					return fmt.Errorf("listing entries: %w", err)
				}
				bands, err := uncertainty.ScopeBands(entries, gwp, opts)
				if err != nil {
					return err
				}
				return renderUncertainty(cmd.OutOrStdout(), format, bands, sess.cfg.Output.Precision)
			})
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "output format: table, json or ndjson")
	cmd.Flags().Float64Var(&k, "k", uncertainty.DefaultCoverageFactor, "coverage factor (default: scoring.coverage_factor)")
	cmd.Flags().StringVar(&policy, "policy", "", "unknown uncertainty policy: zero or invalidate (default: scoring.unknown_uncertainty)")

	return cmd
}
