package view

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/cambio/internal/realtime"
)

// View is the interface that all TUI screens implement.
type View interface {
	tea.Model
	Title() string
	ShortHelp() string
}

var (
	faintStyle  = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	panelStyle  = lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63"))
)

// ConnIndicator renders the chat connection state as a colored dot.
func ConnIndicator(s realtime.State) string {
	color := lipgloss.Color("196")

	switch s {
	case realtime.StateConnected:
		color = lipgloss.Color("42")
	case realtime.StateConnecting:
		color = lipgloss.Color("214")
	}

	return lipgloss.NewStyle().Foreground(color).Render("●") + " " + s.String()
}
