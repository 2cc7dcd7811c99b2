package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/rshade/greenledger/internal/config"
	"github.com/rshade/greenledger/internal/engine"
	"github.com/rshade/greenledger/internal/tui"
)

// defaultRefresh is how often the dashboard polls the store for changes.
const defaultRefresh = 30 * time.Second

// paramFlags holds the scoring inputs shared by report and score commands.
type paramFlags struct {
	revenueK   float64
	sector     string
	indicators map[string]string
}

func (pf *paramFlags) register(cmd *cobra.Command, withIndicators bool) {
	cmd.Flags().Float64Var(&pf.revenueK, "revenue-k", 0, "annual revenue in thousands of euros")
	cmd.Flags().StringVar(&pf.sector, "sector", "", "business sector, for example manufacturing, services or retail")
	if withIndicators {
		cmd.Flags().StringToStringVar(&pf.indicators, "indicators", nil,
			"ESG indicator values as id=value pairs (booleans as true/false)")
	}
}

// params converts the flags. Revenue is only set when the flag was given so
// that a missing revenue reads as insufficient data rather than zero.
func (pf *paramFlags) params(cmd *cobra.Command) (engine.Params, error) {
	p := engine.Params{Sector: pf.sector}
	if cmd.Flags().Changed("revenue-k") {
		revenue := pf.revenueK
		p.RevenueK = &revenue
	}
	if len(pf.indicators) > 0 {
		p.Indicators = make(map[string]float64, len(pf.indicators))
		for id, raw := range pf.indicators {
			v, err := parseIndicatorValue(raw)
			if err != nil {
				return engine.Params{}, fmt.Errorf("indicator %s: %w", id, err)
			}
			p.Indicators[id] = v
		}
	}
	return p, nil
}

func parseIndicatorValue(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return 0, fmt.Errorf("%q is neither a number nor a boolean", raw)
	}
	if b {
		return 1, nil
	}
	return 0, nil
}

// computeReport lists the stored entries and computes one report.
func computeReport(ctx context.Context, sess *session, p engine.Params) (engine.Report, error) {
	report, _, err := engine.NewTracker(sess.engine, sess.store.Entries(), p).Recompute(ctx)
	return report, err
}

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	var (
		pf      paramFlags
		output  string
		plain   bool
		refresh time.Duration
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Compute emissions, compliance, sector, ESG and uncertainty",
		Long: `Computes the full report over the stored entries.

In a terminal the table output opens an interactive dashboard that recomputes
when entries change; --plain prints the table instead.`,
		Example: `  # Interactive dashboard
  greenledger report --revenue-k 850 --sector services

  # Plain table for a pipe or a log
  greenledger report --revenue-k 850 --sector services --plain

  # ESG indicators, NDJSON output
  greenledger report --revenue-k 850 --sector services \
    --indicators renewable_energy_share=42,gender_pay_gap=7,anti_corruption_policy=true --output ndjson`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := resolveOutputFormat(output)
			if err != nil {
				return err
			}
			p, err := pf.params(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return withSession(ctx, func(sess *session) error {
				precision := sess.cfg.Output.Precision
				if format == config.FormatTable && !plain && isTerminal(os.Stdout) {
					return runDashboard(ctx, sess, p, precision, refresh)
				}

				report, computeErr := computeReport(ctx, sess, p)
				if computeErr != nil {
					return computeErr
				}
				logger.Debug().Ctx(ctx).
					Str("input_digest", report.InputDigest).
					Int("entries", report.EntryCount).
					Msg("report computed")

				switch format {
				case config.FormatJSON:
					return engine.RenderJSON(cmd.OutOrStdout(), report)
				case config.FormatNDJSON:
					return engine.RenderNDJSON(cmd.OutOrStdout(), report)
				default:
					return engine.RenderTable(cmd.OutOrStdout(), report, precision)
				}
			})
		},
	}

	pf.register(cmd, true)
	cmd.Flags().StringVar(&output, "output", "", "output format: table, json or ndjson")
	cmd.Flags().BoolVar(&plain, "plain", false, "print the table instead of opening the dashboard")
	cmd.Flags().DurationVar(&refresh, "refresh", defaultRefresh, "dashboard polling interval (0 disables)")

	return cmd
}

// runDashboard opens the interactive dashboard. A background loop polls the
// tracker; reports that changed are pushed to the program.
func runDashboard(ctx context.Context, sess *session, p engine.Params, precision int, refresh time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tracker := engine.NewTracker(sess.engine, sess.store.Entries(), p)
	model := tui.NewDashboardModel(ctx, tracker.Recompute, precision)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	unsubscribe := tracker.Subscribe(func(r engine.Report) {
		program.Send(tui.ReportMsg{Report: r, Changed: true})
	})
	defer unsubscribe()

	if refresh > 0 {
		go pollTracker(ctx, tracker, refresh)
	}

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running dashboard: %w", err)
	}
	return nil
}

func pollTracker(ctx context.Context, tracker *engine.Tracker, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := tracker.Recompute(ctx); err != nil && ctx.Err() == nil {
				logger.Warn().Ctx(ctx).Err(err).Msg("background recompute failed")
			}
		}
	}
}
