package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/shehryarbajwa/browserkube-console/internal/console"
	"github.com/shehryarbajwa/browserkube-console/pkg/models"
)

var (
	ColorFgPrimary = lipgloss.Color("#ABB2BF")
	ColorFgMuted   = lipgloss.Color("#636B78")
	ColorRed       = lipgloss.Color("#E06C75")
	ColorGreen     = lipgloss.Color("#98C379")
	ColorYellow    = lipgloss.Color("#E5C07B")
	ColorBlue      = lipgloss.Color("#61AFEF")
	ColorMagenta   = lipgloss.Color("#C678DD")
	ColorBorder    = lipgloss.Color("#3F4451")
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorMagenta).
			Bold(true).
			PaddingLeft(1)

	PaneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	FocusedPaneStyle = PaneStyle.
				BorderForeground(ColorBlue)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorFgMuted)

	ValueStyle = lipgloss.NewStyle().
			Foreground(ColorFgPrimary)

	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorFgMuted).
			PaddingLeft(1)

	ChipStyle = lipgloss.NewStyle().
			Foreground(ColorBlue).
			Padding(0, 1)
)

// stateStyle colors a session state
func stateStyle(state models.SessionState) lipgloss.Style {
	switch state {
	case models.StateRunning:
		return lipgloss.NewStyle().Foreground(ColorGreen)
	case models.StatePending, models.StateTerminating:
		return lipgloss.NewStyle().Foreground(ColorYellow)
	case models.StateTerminated:
		return lipgloss.NewStyle().Foreground(ColorFgMuted)
	}
	return ValueStyle
}

func toastStyle(level console.Level) lipgloss.Style {
	base := lipgloss.NewStyle().Padding(0, 1).Bold(true)
	switch level {
	case console.LevelError:
		return base.Foreground(ColorRed)
	case console.LevelSuccess:
		return base.Foreground(ColorGreen)
	}
	return base.Foreground(ColorBlue)
}
