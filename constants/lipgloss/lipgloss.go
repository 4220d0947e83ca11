package lipgloss

import "github.com/charmbracelet/lipgloss"

var (
	Red     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")).Bold(true)
	Yellow  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD75F"))
	Green   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD787"))
	Info    = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FAFFF")).Bold(true)
	BlueSky = lipgloss.NewStyle().Foreground(lipgloss.Color("#87D7FF"))
	Gray    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8A8A8A"))

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#5FAFFF")).
			Padding(0, 1)
)
