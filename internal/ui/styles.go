package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bamsammich/treehash/internal/config"
)

// Default palette (Catppuccin Mocha).
var (
	colorRed   = lipgloss.Color("#f38ba8")
	colorText  = lipgloss.Color("#cdd6f4")
	colorMuted = lipgloss.Color("#6c7086")
)

// Styles holds the lipgloss styles used for terminal output.
type Styles struct {
	Failure lipgloss.Style
	Path    lipgloss.Style
	Muted   lipgloss.Style
}

// DefaultStyles returns the built-in palette.
func DefaultStyles() Styles {
	return Styles{
		Failure: lipgloss.NewStyle().Foreground(colorRed).Bold(true),
		Path:    lipgloss.NewStyle().Foreground(colorText),
		Muted:   lipgloss.NewStyle().Foreground(colorMuted),
	}
}

// StylesFromTheme applies config overrides on top of DefaultStyles.
func StylesFromTheme(theme config.ThemeConfig) Styles {
	s := DefaultStyles()
	if theme.Failure != nil {
		s.Failure = s.Failure.Foreground(lipgloss.Color(*theme.Failure))
	}
	if theme.Path != nil {
		s.Path = s.Path.Foreground(lipgloss.Color(*theme.Path))
	}
	if theme.Muted != nil {
		s.Muted = s.Muted.Foreground(lipgloss.Color(*theme.Muted))
	}
	return s
}

func (rw *ResultWriter) style(st lipgloss.Style, s string) string {
	if !rw.color {
		return s
	}
	return st.Render(s)
}
