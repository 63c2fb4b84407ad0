package cli

import (
	"github.com/charmbracelet/lipgloss"
)

// Colors is the terminal palette.
type Colors struct {
	Green  lipgloss.TerminalColor
	Yellow lipgloss.TerminalColor
	Red    lipgloss.TerminalColor
	Orange lipgloss.TerminalColor
	Cyan   lipgloss.TerminalColor
	Blue   lipgloss.TerminalColor
	Violet lipgloss.TerminalColor
	Muted  lipgloss.TerminalColor
}

// Theme holds the styles used by help, logs and status output.
type Theme struct {
	Colors  Colors
	Muted   lipgloss.Style
	Italic  lipgloss.Style
	Accent  lipgloss.Style
	Success lipgloss.Style
	Info    lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Header  lipgloss.Style
}

// DefaultTheme adapts to light and dark terminals.
var DefaultTheme = newTheme(Colors{
	Green:  lipgloss.AdaptiveColor{Light: "#4E7C5A", Dark: "#98BB6C"},
	Yellow: lipgloss.AdaptiveColor{Light: "#A68A64", Dark: "#FF9E3B"},
	Red:    lipgloss.AdaptiveColor{Light: "#C34043", Dark: "#FF5D62"},
	Orange: lipgloss.AdaptiveColor{Light: "#CC6B4E", Dark: "#FFA066"},
	Cyan:   lipgloss.AdaptiveColor{Light: "#5B8BBE", Dark: "#7E9CD8"},
	Blue:   lipgloss.AdaptiveColor{Light: "#4F7CAC", Dark: "#7FB4CA"},
	Violet: lipgloss.AdaptiveColor{Light: "#674D7A", Dark: "#957FB8"},
	Muted:  lipgloss.AdaptiveColor{Light: "#6C7086", Dark: "#727169"},
})

func newTheme(c Colors) *Theme {
	return &Theme{
		Colors:  c,
		Muted:   lipgloss.NewStyle().Foreground(c.Muted),
		Italic:  lipgloss.NewStyle().Italic(true),
		Accent:  lipgloss.NewStyle().Foreground(c.Cyan),
		Success: lipgloss.NewStyle().Foreground(c.Green),
		Info:    lipgloss.NewStyle().Foreground(c.Blue),
		Warning: lipgloss.NewStyle().Foreground(c.Yellow),
		Error:   lipgloss.NewStyle().Foreground(c.Red),
		Header:  lipgloss.NewStyle().Bold(true).Foreground(c.Orange),
	}
}
