// Package engine runs the scoring pipeline over one snapshot of activity
// entries: aggregation by scope, compliance coverage, sector grading, the
// ESG composite and uncertainty bands. It also keeps the latest report up to
// date for long-running consumers and renders reports for the terminal.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rshade/greenledger/internal/compliance"
	"github.com/rshade/greenledger/internal/config"
	"github.com/rshade/greenledger/internal/esg"
	"github.com/rshade/greenledger/internal/greenops"
	"github.com/rshade/greenledger/internal/logging"
	"github.com/rshade/greenledger/internal/reference"
	"github.com/rshade/greenledger/internal/sector"
	"github.com/rshade/greenledger/internal/uncertainty"
)

//nolint:gochecknoglobals // zero value used when hashing
var zeroTime time.Time

// Params are the organisation inputs of a report besides its entries.
type Params struct {
	// RevenueK is the revenue in thousands; nil when unknown.
	RevenueK *float64 `json:"revenue_k,omitempty"`
	// Sector is a sector key; empty when unknown.
	Sector string `json:"sector,omitempty"`
	// Indicators are user-supplied ESG indicator values.
	Indicators map[string]float64 `json:"indicators,omitempty"`
}

// Input is everything one compute pass reads.
type Input struct {
	Params

	Entries []greenops.ActivityEntry
}

// Report is the output of a compute pass. It is plain data: renderers, the
// HTTP API and the dashboard consume it as is.
type Report struct {
	GeneratedAt    time.Time            `json:"generated_at"`
	SnapshotDigest string               `json:"snapshot_digest"`
	InputDigest    string               `json:"input_digest"`
	GWPSet         string               `json:"gwp_set"`
	ReferenceData  string               `json:"reference_data"`
	EntryCount     int                  `json:"entry_count"`
	DraftCount     int                  `json:"draft_count"`
	Totals         greenops.ScopeTotals `json:"totals"`
	Compliance     compliance.Result    `json:"compliance"`
	Sector         sector.Assessment    `json:"sector"`
	ESG            esg.Assessment       `json:"esg"`
	Uncertainty    *uncertainty.Bands   `json:"uncertainty,omitempty"`
	Warnings       []string             `json:"warnings,omitempty"`
}

// Engine computes reports with one reference dataset and one scoring
// configuration.
type Engine struct {
	dataset *reference.Dataset
	scoring config.ScoringConfig
	gwp     greenops.GWPTable
	policy  uncertainty.Policy
	now     func() time.Time
}

// New validates the scoring configuration and returns an Engine.
func New(dataset *reference.Dataset, scoring config.ScoringConfig) (*Engine, error) {
	if dataset == nil {
		return nil, errors.New("reference dataset is required")
	}
	if err := scoring.Validate(); err != nil {
		return nil, err
	}
	gwp, err := greenops.LookupGWPTable(scoring.GWPSet)
	if err != nil {
		return nil, err
	}
	policy, err := uncertainty.ParsePolicy(scoring.UnknownUncertainty)
	if err != nil {
		return nil, err
	}
	return &Engine{dataset: dataset, scoring: scoring, gwp: gwp, policy: policy, now: time.Now}, nil
}

// Dataset returns the reference dataset in use.
func (e *Engine) Dataset() *reference.Dataset { return e.dataset }

// Compute runs every scoring stage on a snapshot of in.Entries.
//
// Missing revenue or sector never fails the pass: the sector and ESG
// sections report insufficient data. Malformed input (an invalid entry, an
// unknown sector key, a calculated indicator set by hand) is an error. Under
// the invalidate policy an unknown uncertainty drops the uncertainty section
// and adds a warning instead of failing the whole report.
func (e *Engine) Compute(ctx context.Context, in Input) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	log := logging.FromContext(ctx)
	start := time.Now()

	snap := NewSnapshot(in.Entries)
	entries := snap.Entries()

	report := Report{
		GeneratedAt:    e.now().UTC(),
		SnapshotDigest: snap.Digest(),
		InputDigest:    InputDigest(snap, in.Params),
		GWPSet:         e.gwp.Name,
		ReferenceData:  e.dataset.Source,
		EntryCount:     snap.Len(),
	}
	for _, entry := range entries {
		if entry.IsDraft() {
			report.DraftCount++
		}
	}

	totals, err := greenops.AggregateByScope(entries, e.gwp, greenops.AggregateOptions{IncludeDrafts: e.scoring.IncludeDrafts})
	if err != nil {
		return Report{}, fmt.Errorf("aggregating emissions: %w", err)
	}
	report.Totals = totals

	report.Compliance = compliance.Evaluate(e.dataset.Taxonomy, entries)

	report.Sector, err = sector.Assess(totals.Total, in.RevenueK, in.Sector, e.dataset.Benchmarks, e.dataset.Ladder)
	if err != nil {
		return Report{}, fmt.Errorf("sector assessment: %w", err)
	}

	values, err := e.indicatorValues(in.Indicators, totals)
	if err != nil {
		return Report{}, fmt.Errorf("ESG indicators: %w", err)
	}
	report.ESG, err = esg.Evaluate(values, in.RevenueK, report.Sector.Benchmark, e.scoring.ESGWeights, e.dataset.Bands)
	if err != nil {
		return Report{}, fmt.Errorf("ESG assessment: %w", err)
	}

	bands, err := uncertainty.ScopeBands(entries, e.gwp, uncertainty.Options{
		CoverageFactor: e.scoring.CoverageFactor,
		Policy:         e.policy,
		IncludeDrafts:  e.scoring.IncludeDrafts,
	})
	switch {
	case errors.Is(err, uncertainty.ErrUnknownUncertainty):
		report.Warnings = append(report.Warnings, err.Error())
	case err != nil:
		return Report{}, fmt.Errorf("uncertainty: %w", err)
	default:
		report.Uncertainty = &bands
	}

	if report.DraftCount > 0 && !e.scoring.IncludeDrafts {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("%d draft entries excluded until validated", report.DraftCount))
	}

	log.Debug().
		Str("component", "engine").
		Str("operation", "compute").
		Str("snapshot_digest", report.SnapshotDigest).
		Int("entry_count", report.EntryCount).
		Float64("total_kg", totals.Total).
		Int("compliance_score", report.Compliance.Score).
		Str("sector_status", string(report.Sector.Status)).
		Str("esg_status", string(report.ESG.Status)).
		Dur("duration", time.Since(start)).
		Msg("report computed")
	return report, nil
}

// indicatorValues builds the ESG values. Total emissions default to the
// aggregated total in tonnes when the caller supplies none and at least one
// entry counted.
func (e *Engine) indicatorValues(raw map[string]float64, totals greenops.ScopeTotals) (esg.Values, error) {
	values, err := esg.NewValues(raw)
	if err != nil {
		return esg.Values{}, err
	}
	if _, ok := values.Get(esg.TotalEmissions); !ok && !totals.IsEmpty() {
		if err = values.Set(esg.TotalEmissions, totals.TotalTonnes()); err != nil {
			return esg.Values{}, err
		}
	}
	return values, nil
}

// InputDigest identifies a snapshot together with its parameters. Two
// inputs with the same digest produce the same report apart from its
// timestamp.
func InputDigest(snap Snapshot, p Params) string {
	data, err := json.Marshal(p)
	if err != nil {
		data = fmt.Appendf(nil, "%#v", p)
	}
	return hashString(snap.Digest() + "\n" + string(data))
}
