package cli

import "github.com/charmbracelet/lipgloss"

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	cellStyle    = lipgloss.NewStyle()
	stoppedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	stderrStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	noticeStyle  = lipgloss.NewStyle().Faint(true)
)
