package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent = lipgloss.AdaptiveColor{Light: "#C0392B", Dark: "#FF6F61"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#7F8C8D", Dark: "#8A8A8A"}
	colorError  = lipgloss.AdaptiveColor{Light: "#B03A2E", Dark: "#FF5F5F"}

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent).
			PaddingLeft(2)

	countStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	searchStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	errorBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorError).
			Foreground(colorError).
			Padding(0, 1).
			MarginLeft(2)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			PaddingLeft(2)

	emptyStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			PaddingLeft(4).
			PaddingTop(1)
)
