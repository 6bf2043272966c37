package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent = lipgloss.Color("#D97757")
	muted  = lipgloss.Color("#8A8A8A")
	failed = lipgloss.Color("#E06C75")

	welcomeStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1)
	promptStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	commandStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	errorStyle   = lipgloss.NewStyle().Foreground(failed)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1)
	candidateStyle   = lipgloss.NewStyle().Width(26)
	highlightedStyle = candidateStyle.Foreground(accent).Bold(true)
	descriptionStyle = lipgloss.NewStyle().Foreground(muted)
)
