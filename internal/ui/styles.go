package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles holds the lipgloss styles used by the renderer.
type Styles struct {
	Header  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Dim     lipgloss.Style
}

// DefaultStyles returns the styled palette.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

// NoColorStyles returns unstyled passthroughs for pipes and CI.
func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Header:  plain,
		Success: plain,
		Warning: plain,
		Error:   plain,
		Dim:     plain,
	}
}
