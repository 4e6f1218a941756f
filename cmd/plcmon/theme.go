package main

import "github.com/charmbracelet/lipgloss"

// theme is plcmon's color palette, the same Tokyo-Night-derived set the
// teacher's dashboard TUI uses, narrowed to the handful of roles this
// monitor actually needs.
type theme struct {
	border  lipgloss.Color
	textDim lipgloss.Color
	accent  lipgloss.Color
	success lipgloss.Color
	warning lipgloss.Color
	danger  lipgloss.Color
}

var defaultTheme = theme{
	border:  lipgloss.Color("#414868"),
	textDim: lipgloss.Color("#565f89"),
	accent:  lipgloss.Color("#7aa2f7"),
	success: lipgloss.Color("#9ece6a"),
	warning: lipgloss.Color("#e0af68"),
	danger:  lipgloss.Color("#f7768e"),
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(defaultTheme.accent)
	dimStyle   = lipgloss.NewStyle().Foreground(defaultTheme.textDim)
	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(defaultTheme.border).
			Padding(0, 1)
)

func stateStyle(connected bool) lipgloss.Style {
	if connected {
		return lipgloss.NewStyle().Foreground(defaultTheme.success)
	}
	return lipgloss.NewStyle().Foreground(defaultTheme.warning)
}

func statusStyle(ok bool) lipgloss.Style {
	if ok {
		return lipgloss.NewStyle().Foreground(defaultTheme.success)
	}
	return lipgloss.NewStyle().Foreground(defaultTheme.danger)
}
