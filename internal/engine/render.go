package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rshade/greenledger/internal/compliance"
	"github.com/rshade/greenledger/internal/greenops"
	"github.com/rshade/greenledger/internal/sector"
)

// tabwriterPadding is the minimum padding between table columns.
const tabwriterPadding = 2

// RenderTable writes a human-readable report, masses and percentages at the
// given precision.
func RenderTable(w io.Writer, r Report, precision int) error {
	tw := tabwriter.NewWriter(w, 0, 0, tabwriterPadding, ' ', 0)
	p := &tablePrinter{w: tw}

	p.line("SCOPE\tEMISSIONS\tENTRIES\tUNCERTAINTY (k=%s)", coverageLabel(r))
	p.line("-----\t---------\t-------\t-----------")
	for _, s := range greenops.Scopes() {
		p.line("%s\t%s\t%d\t%s", s, greenops.FormatMass(r.Totals.ForScope(s), precision),
			r.Totals.EntryCount[s], uncertaintyCell(r, s, precision))
	}
	p.line("TOTAL\t%s\t%d\t%s", greenops.FormatMass(r.Totals.Total, precision),
		countedEntries(r), totalUncertaintyCell(r, precision))
	p.line("")

	p.line("COMPLIANCE\t%d/100\t%d/%d categories", r.Compliance.Score, r.Compliance.FilledCount, r.Compliance.TotalCount)
	if len(r.Compliance.MissingCategories) > 0 {
		p.line("  missing\t%s", strings.Join(categoryNames(r.Compliance.MissingCategories), ", "))
	}

	p.line("SECTOR\t%s", sectorCell(r.Sector, precision))
	if r.ESG.Status == sector.StatusScored {
		p.line("ESG\t%s (%s)", greenops.FormatFloat(r.ESG.Composite, precision), r.ESG.Grade)
		for _, ps := range r.ESG.Pillars {
			p.line("  %s\t%s\t%d/%d indicators", ps.Pillar, greenops.FormatFloat(ps.Score, precision), ps.Scored, ps.Available)
		}
	} else {
		p.line("ESG\tinsufficient data (%s)", joinPillars(r))
	}

	for _, warning := range r.Warnings {
		p.line("WARNING\t%s", warning)
	}
	if p.err != nil {
		return fmt.Errorf("writing table: %w", p.err)
	}
	return tw.Flush()
}

// RenderJSON writes the report as one indented JSON document.
func RenderJSON(w io.Writer, r Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(r); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}

// ndjsonRecord is one line of the NDJSON stream.
type ndjsonRecord struct {
	Section string `json:"section"`
	Digest  string `json:"snapshot_digest"`
	Data    any    `json:"data"`
}

// RenderNDJSON writes one JSON line per report section, each tagged with
// the section name and the snapshot digest.
func RenderNDJSON(w io.Writer, r Report) error {
	records := []ndjsonRecord{
		{Section: "totals", Data: r.Totals},
		{Section: "compliance", Data: r.Compliance},
		{Section: "sector", Data: r.Sector},
		{Section: "esg", Data: r.ESG},
	}
	if r.Uncertainty != nil {
		records = append(records, ndjsonRecord{Section: "uncertainty", Data: r.Uncertainty})
	}
	for _, warning := range r.Warnings {
		records = append(records, ndjsonRecord{Section: "warning", Data: warning})
	}
	for _, rec := range records {
		rec.Digest = r.SnapshotDigest
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshaling %s: %w", rec.Section, err)
		}
		if _, err = fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("writing NDJSON line: %w", err)
		}
	}
	return nil
}

// tablePrinter keeps the first write error so rows need no checks.
type tablePrinter struct {
	w   io.Writer
	err error
}

func (p *tablePrinter) line(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format+"\n", args...)
}

func coverageLabel(r Report) string {
	if r.Uncertainty == nil {
		return "-"
	}
	return greenops.FormatFloat(r.Uncertainty.CoverageFactor, 1)
}

func uncertaintyCell(r Report, s greenops.Scope, precision int) string {
	if r.Uncertainty == nil {
		return "-"
	}
	b := r.Uncertainty.Scopes[s]
	cell := "± " + greenops.FormatMass(b.Expanded, precision) + " (" + greenops.FormatPercent(b.RelativePercent, precision) + ")"
	if len(b.Unknown) > 0 {
		cell += fmt.Sprintf(" [%d unknown]", len(b.Unknown))
	}
	return cell
}

func totalUncertaintyCell(r Report, precision int) string {
	if r.Uncertainty == nil {
		return "-"
	}
	b := r.Uncertainty.Total
	return "± " + greenops.FormatMass(b.Expanded, precision) + " (" + greenops.FormatPercent(b.RelativePercent, precision) + ")"
}

func countedEntries(r Report) int {
	n := 0
	for _, c := range r.Totals.EntryCount {
		n += c
	}
	return n
}

func sectorCell(a sector.Assessment, precision int) string {
	if a.Status != sector.StatusScored {
		return "insufficient data (missing " + strings.Join(a.Missing, ", ") + ")"
	}
	return fmt.Sprintf("%s %s (%d/100), intensity %s %s",
		a.Sector, a.Grade, a.Score, greenops.FormatFloat(a.Intensity, precision+1), a.Unit)
}

func categoryNames(categories []compliance.Category) []string {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.Name
	}
	return names
}

func joinPillars(r Report) string {
	names := make([]string, len(r.ESG.Missing))
	for i, p := range r.ESG.Missing {
		names[i] = "no " + string(p) + " data"
	}
	return strings.Join(names, ", ")
}
