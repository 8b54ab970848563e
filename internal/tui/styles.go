package tui

import "github.com/charmbracelet/lipgloss"

// Dark player palette
var (
	Primary   = lipgloss.Color("#FF6B35")
	Secondary = lipgloss.Color("#1E88E5")
	Success   = lipgloss.Color("#66BB6A")
	Warning   = lipgloss.Color("#FFB74D")
	Danger    = lipgloss.Color("#F44336")
	Text      = lipgloss.Color("#E0E0E0")
	Muted     = lipgloss.Color("#90A4AE")
	Border    = lipgloss.Color("#30363D")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true).
			Padding(0, 1)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Border).
			Foreground(Text).
			Padding(0, 1)

	PanelTitleStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	LabelStyle = lipgloss.NewStyle().Foreground(Muted)
	ValueStyle = lipgloss.NewStyle().Foreground(Text).Bold(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true).
			Align(lipgloss.Center)

	ErrorStyle = lipgloss.NewStyle().Foreground(Danger).Bold(true)
	HelpStyle  = lipgloss.NewStyle().Foreground(Muted)
)

// StateBadge renders a playback state in its color.
func StateBadge(state string) string {
	style := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	switch state {
	case "Playing":
		style = style.Foreground(Success)
	case "Paused", "Loading":
		style = style.Foreground(Warning)
	case "Error":
		style = style.Foreground(Danger)
	case "Ended":
		style = style.Foreground(Secondary)
	default:
		style = style.Foreground(Muted)
	}
	return style.Render(state)
}
