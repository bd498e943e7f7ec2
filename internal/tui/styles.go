package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/h0rv/jobtrack/internal/domain"
)

var (
	// TitleStyle is used for screen titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")). // Purple
			MarginBottom(1)

	// SelectedItemStyle is used for highlighted/selected items.
	SelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("170")). // Light purple
				Bold(true)

	// NormalItemStyle is used for non-selected items.
	NormalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")) // Light gray

	// ErrorStyle is used for error messages.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")). // Red
			Bold(true)

	// WarningStyle is used for non-fatal problems.
	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // Orange

	headerStyle = lipgloss.NewStyle().
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// StageColors are the chart colours per stage.
var StageColors = map[domain.Stage]lipgloss.Color{
	domain.StageOpen:              lipgloss.Color("#FFBB00"),
	domain.StageSamplePreparation: lipgloss.Color("#375E97"),
	domain.StageTesting:           lipgloss.Color("#FB6542"),
	domain.StageReport:            lipgloss.Color("#008000"),
	domain.StageOther:             lipgloss.Color("245"),
}

func stageStyle(s domain.Stage) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(StageColors[s])
}
