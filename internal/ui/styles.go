package ui

import "github.com/charmbracelet/lipgloss"

// Color palette. A single teal accent with neutral grays keeps the
// display readable on both dark and light terminals.
const (
	ColorTeal     = "86"  // Primary accent
	ColorTealDim  = "30"  // Dimmed accent for inactive stages
	ColorGray     = "245" // Labels, secondary text
	ColorDarkGray = "238" // Borders, separators
	ColorRed      = "196" // Errors
	ColorYellow   = "220" // Warnings
)

// Styles holds the lipgloss styles used by the TUI and status output.
type Styles struct {
	Header  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Dim     lipgloss.Style
	Active  lipgloss.Style
	Label   lipgloss.Style
	Rate    lipgloss.Style

	Border    lipgloss.Style
	Sparkline lipgloss.Style
}

// DefaultStyles returns the colored style set.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorTeal)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorTeal)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Active:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorTeal)),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Rate:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),

		Border:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Sparkline: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorTealDim)),
	}
}

// NoColorStyles returns an unstyled set for NO_COLOR environments.
func NoColorStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle(),
		Success:   lipgloss.NewStyle(),
		Warning:   lipgloss.NewStyle(),
		Error:     lipgloss.NewStyle(),
		Dim:       lipgloss.NewStyle(),
		Active:    lipgloss.NewStyle(),
		Label:     lipgloss.NewStyle(),
		Rate:      lipgloss.NewStyle(),
		Border:    lipgloss.NewStyle(),
		Sparkline: lipgloss.NewStyle(),
	}
}

// GetStyles returns the style set matching the color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
