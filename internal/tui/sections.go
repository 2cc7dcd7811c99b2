package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"

	"github.com/rshade/greenledger/internal/engine"
	"github.com/rshade/greenledger/internal/greenops"
	"github.com/rshade/greenledger/internal/sector"
	"github.com/rshade/greenledger/internal/uncertainty"
)

// Tab is one dashboard section.
type Tab int

// Dashboard tabs in display order.
const (
	TabTotals Tab = iota
	TabCompliance
	TabSector
	TabESG
	TabUncertainty
	tabCount
)

// String returns the tab title.
func (t Tab) String() string {
	switch t {
	case TabTotals:
		return "Emissions"
	case TabCompliance:
		return "Compliance"
	case TabSector:
		return "Sector"
	case TabESG:
		return "ESG"
	case TabUncertainty:
		return "Uncertainty"
	default:
		return "?"
	}
}

// Tabs lists every tab.
func Tabs() []Tab {
	out := make([]Tab, 0, tabCount)
	for t := range tabCount {
		out = append(out, t)
	}
	return out
}

// SectionTable builds the table of one tab from a report.
func SectionTable(r engine.Report, tab Tab, precision, height int) table.Model {
	var (
		columns []table.Column
		rows    []table.Row
	)
	switch tab {
	case TabTotals:
		columns, rows = totalsSection(r, precision)
	case TabCompliance:
		columns, rows = complianceSection(r)
	case TabSector:
		columns, rows = sectorSection(r, precision)
	case TabESG:
		columns, rows = esgSection(r, precision)
	case TabUncertainty:
		columns, rows = uncertaintySection(r, precision)
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(height),
	)
	s := table.DefaultStyles()
	s.Header = TableHeaderStyle
	s.Selected = TableSelectedStyle
	t.SetStyles(s)
	return t
}

func totalsSection(r engine.Report, precision int) ([]table.Column, []table.Row) {
	columns := []table.Column{
		{Title: "Scope", Width: 10},     //nolint:mnd // Column width.
		{Title: "Emissions", Width: 20}, //nolint:mnd // Column width.
		{Title: "Entries", Width: 8},    //nolint:mnd // Column width.
		{Title: "Share", Width: 10},     //nolint:mnd // Column width.
	}
	rows := make([]table.Row, 0, len(greenops.Scopes())+1)
	for _, s := range greenops.Scopes() {
		share := 0.0
		if r.Totals.Total > 0 {
			share = r.Totals.ForScope(s) / r.Totals.Total * 100 //nolint:mnd // Percent.
		}
		rows = append(rows, table.Row{
			string(s),
			greenops.FormatMass(r.Totals.ForScope(s), precision),
			strconv.Itoa(r.Totals.EntryCount[s]),
			greenops.FormatPercent(share, 1),
		})
	}
	rows = append(rows, table.Row{"total", greenops.FormatMass(r.Totals.Total, precision), strconv.Itoa(r.EntryCount), ""})
	return columns, rows
}

func complianceSection(r engine.Report) ([]table.Column, []table.Row) {
	columns := []table.Column{
		{Title: "Category", Width: 32}, //nolint:mnd // Column width.
		{Title: "Scope", Width: 8},     //nolint:mnd // Column width.
		{Title: "Status", Width: 10},   //nolint:mnd // Column width.
		{Title: "Evidence", Width: 24}, //nolint:mnd // Column width.
	}
	evidence := make(map[string]string, len(r.Compliance.Evidence))
	for _, e := range r.Compliance.Evidence {
		evidence[e.CategoryID] = e.EntryID + " (" + e.Keyword + ")"
	}
	var rows []table.Row
	for _, c := range r.Compliance.FilledCategories {
		rows = append(rows, table.Row{c.Name, string(c.Scope), "filled", evidence[c.ID]})
	}
	for _, c := range r.Compliance.MissingCategories {
		rows = append(rows, table.Row{c.Name, string(c.Scope), "missing", ""})
	}
	return columns, rows
}

func sectorSection(r engine.Report, precision int) ([]table.Column, []table.Row) {
	columns := []table.Column{
		{Title: "Measure", Width: 22}, //nolint:mnd // Column width.
		{Title: "Value", Width: 30},   //nolint:mnd // Column width.
	}
	a := r.Sector
	if a.Status != sector.StatusScored {
		return columns, []table.Row{{"status", "insufficient data"}, {"missing", strings.Join(a.Missing, ", ")}}
	}
	rows := []table.Row{
		{"sector", string(a.Sector)},
		{"intensity", greenops.FormatFloat(a.Intensity, precision+1) + " " + a.Unit},
		{"grade", string(a.Grade)},
		{"score", strconv.Itoa(a.Score) + "/100"},
	}
	if a.Benchmark != nil {
		rows = append(rows,
			table.Row{"top performers", greenops.FormatFloat(a.Benchmark.TopPerformers, precision+1)},
			table.Row{"sector average", greenops.FormatFloat(a.Benchmark.Average, precision+1)},
			table.Row{"threshold", greenops.FormatFloat(a.Benchmark.Threshold, precision+1)},
		)
	}
	return columns, rows
}

func esgSection(r engine.Report, precision int) ([]table.Column, []table.Row) {
	columns := []table.Column{
		{Title: "Pillar", Width: 8},      //nolint:mnd // Column width.
		{Title: "Score", Width: 10},      //nolint:mnd // Column width.
		{Title: "Weight", Width: 8},      //nolint:mnd // Column width.
		{Title: "Indicators", Width: 12}, //nolint:mnd // Column width.
	}
	rows := make([]table.Row, 0, len(r.ESG.Pillars)+1)
	for _, p := range r.ESG.Pillars {
		score := "-"
		if p.HasData() {
			score = greenops.FormatFloat(p.Score, precision)
		}
		rows = append(rows, table.Row{
			string(p.Pillar), score, greenops.FormatFloat(p.Weight, 2), fmt.Sprintf("%d/%d", p.Scored, p.Available),
		})
	}
	composite := "insufficient data"
	if r.ESG.Status == sector.StatusScored {
		composite = greenops.FormatFloat(r.ESG.Composite, precision) + " " + string(r.ESG.Grade)
	}
	rows = append(rows, table.Row{"total", composite, "", ""})
	return columns, rows
}

func uncertaintySection(r engine.Report, precision int) ([]table.Column, []table.Row) {
	columns := []table.Column{
		{Title: "Scope", Width: 8},     //nolint:mnd // Column width.
		{Title: "± U", Width: 18},      //nolint:mnd // Column width.
		{Title: "Relative", Width: 10}, //nolint:mnd // Column width.
		{Title: "Range", Width: 34},    //nolint:mnd // Column width.
		{Title: "Unknown", Width: 8},   //nolint:mnd // Column width.
	}
	if r.Uncertainty == nil {
		return columns, []table.Row{{"-", "not computed", "", "", ""}}
	}
	row := func(name string, b uncertainty.Band) table.Row {
		return table.Row{
			name,
			greenops.FormatMass(b.Expanded, precision),
			greenops.FormatPercent(b.RelativePercent, 1),
			greenops.FormatMass(b.Lower, precision) + " - " + greenops.FormatMass(b.Upper, precision),
			strconv.Itoa(len(b.Unknown)),
		}
	}
	rows := make([]table.Row, 0, len(greenops.Scopes())+1)
	for _, s := range greenops.Scopes() {
		rows = append(rows, row(string(s), r.Uncertainty.Scopes[s]))
	}
	rows = append(rows, row("total", r.Uncertainty.Total))
	return columns, rows
}
