package main

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	colorPrimary = lipgloss.Color("#2196F3")
	colorSuccess = lipgloss.Color("#8BC34A")
	colorWarning = lipgloss.Color("#FFC107")
	colorError   = lipgloss.Color("#e53935")
	colorMuted   = lipgloss.Color("#8a94a6")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Underline(true)

	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(colorSuccess).
			Padding(1, 2).
			Align(lipgloss.Center)
)

// lineStyle picks the console color for a line kind
func lineStyle(kind string) lipgloss.Style {
	switch kind {
	case "success":
		return successStyle
	case "error":
		return errorStyle
	case "info":
		return mutedStyle
	default:
		return lipgloss.NewStyle()
	}
}

// statCard renders a label over a value, used in the dashboard row
func statCard(label, value string) string {
	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Center,
		titleStyle.Render(value),
		mutedStyle.Render(label),
	))
}
