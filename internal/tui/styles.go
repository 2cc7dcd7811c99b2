// Package tui renders greenledger reports in the terminal: lipgloss styles
// shared by the CLI and a Bubble Tea dashboard with one tab per report
// section.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/rshade/greenledger/internal/sector"
)

// Palette.
const (
	ColorHeader    = lipgloss.Color("39")
	ColorLabel     = lipgloss.Color("245")
	ColorValue     = lipgloss.Color("255")
	ColorMuted     = lipgloss.Color("241")
	ColorHighlight = lipgloss.Color("213")
	ColorOK        = lipgloss.Color("42")
	ColorWarning   = lipgloss.Color("214")
	ColorCritical  = lipgloss.Color("196")
)

// Shared styles.
//
//nolint:gochecknoglobals // lipgloss styles are immutable values.
var (
	TitleStyle = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	LabelStyle = lipgloss.NewStyle().Foreground(ColorLabel)
	ValueStyle = lipgloss.NewStyle().Foreground(ColorValue).Bold(true)

	SubtleStyle  = lipgloss.NewStyle().Foreground(ColorMuted).Italic(true)
	WarningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorCritical).Bold(true)

	ActiveTabStyle   = lipgloss.NewStyle().Foreground(ColorHighlight).Bold(true).Underline(true).Padding(0, 1)
	InactiveTabStyle = lipgloss.NewStyle().Foreground(ColorLabel).Padding(0, 1)

	TableHeaderStyle = lipgloss.NewStyle().
				Foreground(ColorHeader).
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true)
	TableSelectedStyle = lipgloss.NewStyle().Foreground(ColorHighlight).Bold(true)
)

// GradeStyle colours a letter grade from green (A+) to red (D).
func GradeStyle(g sector.Grade) lipgloss.Style {
	switch g {
	case sector.GradeAPlus, sector.GradeA:
		return lipgloss.NewStyle().Foreground(ColorOK).Bold(true)
	case sector.GradeBPlus, sector.GradeB:
		return lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	case sector.GradeC, sector.GradeD:
		return lipgloss.NewStyle().Foreground(ColorCritical).Bold(true)
	default:
		return SubtleStyle
	}
}

// ScoreStyle colours a 0-100 score.
func ScoreStyle(score float64) lipgloss.Style {
	switch {
	case score >= 75: //nolint:mnd // Score threshold.
		return lipgloss.NewStyle().Foreground(ColorOK).Bold(true)
	case score >= 50: //nolint:mnd // Score threshold.
		return lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(ColorCritical).Bold(true)
	}
}
