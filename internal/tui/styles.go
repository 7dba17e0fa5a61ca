package tui

import "github.com/charmbracelet/lipgloss"

var (
	bubbleStyle = lipgloss.NewStyle().
			Padding(0, 2).
			Bold(true).
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("62"))

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFDF5"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))

	userStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("62"))

	botStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("236"))

	typingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Italic(true)
)
