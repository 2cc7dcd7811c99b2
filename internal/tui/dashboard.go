package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rshade/greenledger/internal/engine"
	"github.com/rshade/greenledger/internal/greenops"
	"github.com/rshade/greenledger/internal/logging"
)

const (
	defaultWidth  = 100
	defaultHeight = 24
	chromeHeight  = 8
	minTableRows  = 3
)

// RecomputeFunc produces a fresh report; changed is false when the inputs
// did not move since the last call.
type RecomputeFunc func(ctx context.Context) (report engine.Report, changed bool, err error)

// ReportMsg delivers a report to the dashboard, either from its own
// recompute or from a tracker subscription.
type ReportMsg struct {
	Report  engine.Report
	Changed bool
	Err     error
}

// DashboardModel is the Bubble Tea model of the interactive report.
//
//nolint:recvcheck // Bubble Tea requires value receivers for Init/Update/View interface methods.
type DashboardModel struct {
	ctx       context.Context
	recompute RecomputeFunc
	precision int

	report   *engine.Report
	tab      Tab
	table    table.Model
	loading  bool
	lastNoOp bool
	err      error
	width    int
	height   int
}

// NewDashboardModel returns a dashboard that loads its first report on Init.
func NewDashboardModel(ctx context.Context, recompute RecomputeFunc, precision int) DashboardModel {
	return DashboardModel{
		ctx:       ctx,
		recompute: recompute,
		precision: precision,
		loading:   true,
		width:     defaultWidth,
		height:    defaultHeight,
	}
}

// Init starts the first computation.
func (m DashboardModel) Init() tea.Cmd {
	return m.recomputeCmd()
}

func (m DashboardModel) recomputeCmd() tea.Cmd {
	ctx, recompute := m.ctx, m.recompute
	return func() tea.Msg {
		report, changed, err := recompute(ctx)
		return ReportMsg{Report: report, Changed: changed, Err: err}
	}
}

// Update handles keys, window sizes and reports.
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.rebuildTable()
		return m, nil

	case ReportMsg:
		m.loading = false
		if msg.Err != nil {
			m.err = msg.Err
			logging.FromContext(m.ctx).Warn().
				Str("component", "tui").
				Err(msg.Err).
				Msg("recompute failed")
			return m, nil
		}
		m.err = nil
		m.lastNoOp = !msg.Changed && m.report != nil
		report := msg.Report
		m.report = &report
		m.rebuildTable()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m DashboardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		return m, tea.Quit
	case "r":
		if m.loading {
			return m, nil
		}
		m.loading = true
		return m, m.recomputeCmd()
	case "tab", "right", "l":
		m.tab = (m.tab + 1) % tabCount
		m.rebuildTable()
		return m, nil
	case "shift+tab", "left", "h":
		m.tab = (m.tab + tabCount - 1) % tabCount
		m.rebuildTable()
		return m, nil
	case "1", "2", "3", "4", "5":
		m.tab = Tab(msg.String()[0] - '1')
		m.rebuildTable()
		return m, nil
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *DashboardModel) rebuildTable() {
	if m.report == nil {
		return
	}
	m.table = SectionTable(*m.report, m.tab, m.precision, max(m.height-chromeHeight, minTableRows))
}

// ActiveTab returns the selected tab.
func (m DashboardModel) ActiveTab() Tab { return m.tab }

// View renders the dashboard.
func (m DashboardModel) View() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("greenledger"))
	b.WriteString("  ")
	b.WriteString(m.headline())
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	switch {
	case m.report == nil && m.loading:
		b.WriteString(SubtleStyle.Render("computing report..."))
	case m.report == nil && m.err != nil:
		b.WriteString(ErrorStyle.Render("error: " + m.err.Error()))
	case m.report != nil:
		b.WriteString(m.table.View())
	}
	b.WriteString("\n\n")

	if m.report != nil {
		for _, w := range m.report.Warnings {
			b.WriteString(WarningStyle.Render("! " + w))
			b.WriteString("\n")
		}
	}
	if m.report != nil && m.err != nil {
		b.WriteString(ErrorStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(m.status())
	return lipgloss.NewStyle().MaxWidth(m.width).Render(b.String())
}

func (m DashboardModel) headline() string {
	if m.report == nil {
		return ""
	}
	r := m.report
	parts := []string{
		LabelStyle.Render("total ") + ValueStyle.Render(greenops.FormatMass(r.Totals.Total, m.precision)),
		LabelStyle.Render("compliance ") + ScoreStyle(float64(r.Compliance.Score)).Render(greenops.FormatNumber(int64(r.Compliance.Score))+"/100"),
	}
	if r.Sector.Grade != "" {
		parts = append(parts, LabelStyle.Render("sector ")+GradeStyle(r.Sector.Grade).Render(string(r.Sector.Grade)))
	}
	if r.ESG.Grade != "" {
		parts = append(parts, LabelStyle.Render("esg ")+GradeStyle(r.ESG.Grade).Render(string(r.ESG.Grade)))
	}
	return strings.Join(parts, "  ")
}

func (m DashboardModel) renderTabs() string {
	tabs := make([]string, 0, tabCount)
	for _, t := range Tabs() {
		label := greenops.FormatNumber(int64(t)+1) + " " + t.String()
		if t == m.tab {
			tabs = append(tabs, ActiveTabStyle.Render(label))
		} else {
			tabs = append(tabs, InactiveTabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m DashboardModel) status() string {
	help := "tab/←→ switch  1-5 jump  r recompute  q quit"
	switch {
	case m.loading && m.report != nil:
		return SubtleStyle.Render("recomputing...  " + help)
	case m.lastNoOp:
		return SubtleStyle.Render("no change since last compute  " + help)
	default:
		return SubtleStyle.Render(help)
	}
}
