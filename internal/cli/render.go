package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/rshade/greenledger/internal/compliance"
	"github.com/rshade/greenledger/internal/config"
	"github.com/rshade/greenledger/internal/esg"
	"github.com/rshade/greenledger/internal/greenops"
	"github.com/rshade/greenledger/internal/metadata"
	"github.com/rshade/greenledger/internal/sector"
	"github.com/rshade/greenledger/internal/uncertainty"
)

// tabwriterPadding is the minimum padding between table columns.
const tabwriterPadding = 2

// resolveOutputFormat applies the configured default and rejects unknown
// formats.
func resolveOutputFormat(flagValue string) (string, error) {
	format := config.GetOutputFormat(flagValue)
	if !isValidOutputFormat(format) {
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
	return format, nil
}

func isValidOutputFormat(format string) bool {
	return slices.Contains([]string{config.FormatTable, config.FormatJSON, config.FormatNDJSON}, format)
}

// table is a tabwriter that keeps the first write error.
type table struct {
	tw  *tabwriter.Writer
	err error
}

func newTable(w io.Writer) *table {
	return &table{tw: tabwriter.NewWriter(w, 0, 0, tabwriterPadding, ' ', 0)}
}

func (t *table) row(cells ...string) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintln(t.tw, strings.Join(cells, "\t"))
}

func (t *table) flush() error {
	if t.err != nil {
		return t.err
	}
	return t.tw.Flush()
}

// renderJSON writes v as indented JSON.
func renderJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}

// renderNDJSON writes one JSON line per item.
func renderNDJSON[T any](w io.Writer, items []T) error {
	encoder := json.NewEncoder(w)
	for _, item := range items {
		if err := encoder.Encode(item); err != nil {
			return fmt.Errorf("writing NDJSON line: %w", err)
		}
	}
	return nil
}

func renderEntries(w io.Writer, format string, entries []greenops.ActivityEntry, precision int) error {
	switch format {
	case config.FormatJSON:
		return renderJSON(w, entries)
	case config.FormatNDJSON:
		return renderNDJSON(w, entries)
	}

	t := newTable(w)
	t.row("ID", "SCOPE", "CATEGORY", "QUANTITY", "FACTOR", "EMISSIONS", "UNCERTAINTY", "STATUS")
	for _, e := range entries {
		uncertaintyCell := "-"
		if e.UncertaintyPercent != nil {
			uncertaintyCell = greenops.FormatPercent(*e.UncertaintyPercent, 1)
		}
		t.row(
			e.ID,
			string(e.Scope),
			e.Category,
			greenops.FormatFloat(e.Quantity, precision)+" "+e.Unit,
			greenops.FormatFloat(e.EmissionFactorValue, precision+1)+" "+e.FactorUnit(),
			greenops.FormatFloat(e.Emissions(), precision)+" "+e.FactorUnit(),
			uncertaintyCell,
			string(e.Status),
		)
	}
	if err := t.flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d entries\n", len(entries))
	return err
}

func renderCompliance(w io.Writer, format string, r compliance.Result) error {
	switch format {
	case config.FormatJSON:
		return renderJSON(w, r)
	case config.FormatNDJSON:
		return renderNDJSON(w, []compliance.Result{r})
	}

	evidence := make(map[string]compliance.Evidence, len(r.Evidence))
	for _, e := range r.Evidence {
		evidence[e.CategoryID] = e
	}
	t := newTable(w)
	t.row("CATEGORY", "SCOPE", "STATUS", "EVIDENCE")
	for _, c := range r.FilledCategories {
		ev := evidence[c.ID]
		t.row(c.Name, string(c.Scope), "filled", ev.EntryID+" ("+ev.Keyword+")")
	}
	for _, c := range r.MissingCategories {
		t.row(c.Name, string(c.Scope), "missing", "-")
	}
	t.row("")
	t.row("SCORE", fmt.Sprintf("%d/100", r.Score), fmt.Sprintf("%d/%d categories", r.FilledCount, r.TotalCount))
	return t.flush()
}

func renderSector(w io.Writer, format string, a sector.Assessment, precision int) error {
	switch format {
	case config.FormatJSON:
		return renderJSON(w, a)
	case config.FormatNDJSON:
		return renderNDJSON(w, []sector.Assessment{a})
	}

	t := newTable(w)
	if a.Status != sector.StatusScored {
		t.row("STATUS", "insufficient data")
		t.row("MISSING", strings.Join(a.Missing, ", "))
		return t.flush()
	}
	t.row("SECTOR", string(a.Sector))
	t.row("INTENSITY", greenops.FormatFloat(a.Intensity, precision+1)+" "+a.Unit)
	t.row("GRADE", string(a.Grade))
	t.row("SCORE", fmt.Sprintf("%d/100", a.Score))
	if a.Benchmark != nil {
		t.row("TOP PERFORMERS", greenops.FormatFloat(a.Benchmark.TopPerformers, precision+1))
		t.row("SECTOR AVERAGE", greenops.FormatFloat(a.Benchmark.Average, precision+1))
		t.row("THRESHOLD", greenops.FormatFloat(a.Benchmark.Threshold, precision+1))
	}
	return t.flush()
}

func renderESG(w io.Writer, format string, a esg.Assessment, precision int) error {
	switch format {
	case config.FormatJSON:
		return renderJSON(w, a)
	case config.FormatNDJSON:
		return renderNDJSON(w, a.Pillars)
	}

	t := newTable(w)
	t.row("PILLAR", "SCORE", "WEIGHT", "INDICATORS")
	for _, p := range a.Pillars {
		score := "-"
		if p.HasData() {
			score = greenops.FormatFloat(p.Score, precision)
		}
		t.row(string(p.Pillar), score, greenops.FormatFloat(p.Weight, 2), fmt.Sprintf("%d/%d", p.Scored, p.Available))
	}
	t.row("")
	if a.Status == sector.StatusScored {
		t.row("COMPOSITE", greenops.FormatFloat(a.Composite, precision), string(a.Grade))
	} else {
		missing := make([]string, 0, len(a.Missing))
		for _, p := range a.Missing {
			missing = append(missing, "no "+string(p)+" data")
		}
		t.row("COMPOSITE", "insufficient data", strings.Join(missing, ", "))
	}
	return t.flush()
}

func renderUncertainty(w io.Writer, format string, b uncertainty.Bands, precision int) error {
	bands := make([]uncertainty.Band, 0, len(greenops.Scopes())+1)
	for _, s := range greenops.Scopes() {
		bands = append(bands, b.Scopes[s])
	}
	bands = append(bands, b.Total)

	switch format {
	case config.FormatJSON:
		return renderJSON(w, b)
	case config.FormatNDJSON:
		return renderNDJSON(w, bands)
	}

	t := newTable(w)
	t.row("SCOPE", "EMISSIONS", "u_c", "U (k="+greenops.FormatFloat(b.CoverageFactor, 1)+")", "RELATIVE", "RANGE", "UNKNOWN")
	names := append(slices.Clone(greenops.Scopes()), "total")
	for i, band := range bands {
		t.row(
			string(names[i]),
			greenops.FormatMass(band.Emissions, precision),
			greenops.FormatMass(band.Standard, precision),
			greenops.FormatMass(band.Expanded, precision),
			greenops.FormatPercent(band.RelativePercent, 1),
			greenops.FormatMass(band.Lower, precision)+" - "+greenops.FormatMass(band.Upper, precision),
			strings.Join(band.Unknown, ","),
		)
	}
	return t.flush()
}

func renderHistory(w io.Writer, format string, history []metadata.CalculationMetadata, chainErr error) error {
	switch format {
	case config.FormatJSON:
		return renderJSON(w, history)
	case config.FormatNDJSON:
		return renderNDJSON(w, history)
	}

	t := newTable(w)
	t.row("VERSION", "SOURCE", "FACTOR", "VERIFICATION", "CREATED", "BY", "REASON")
	for _, m := range history {
		t.row(
			fmt.Sprintf("v%d", m.Version),
			string(m.FactorSource),
			greenops.FormatFloat(m.FactorValue, 4), //nolint:mnd // Emission factors carry four decimals.
			string(m.VerificationStatus),
			m.CreatedAt.Format("2006-01-02 15:04:05"),
			m.CreatedBy,
			m.Reason,
		)
	}
	t.row("")
	if chainErr != nil {
		t.row("CHAIN", "BROKEN", chainErr.Error())
	} else {
		t.row("CHAIN", "verified")
	}
	return t.flush()
}
