package ui

import (
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
)

// StyleManager encapsulates all TUI styles and provides methods for style operations
type StyleManager struct {
	// Tab bar styles
	Tab       lipgloss.Style
	ActiveTab lipgloss.Style

	// Outline pane styles
	Outline         lipgloss.Style
	OutlineSelected lipgloss.Style
	OutlineBorder   lipgloss.Style

	// Chrome styles
	Status  lipgloss.Style
	Error   lipgloss.Style
	Dim     lipgloss.Style
	Divider lipgloss.Style
}

// DefaultStyles returns a StyleManager for the dark theme
func DefaultStyles() *StyleManager {
	s := &StyleManager{}
	s.Load("dark")
	return s
}

// Load switches the palette to match theme
func (s *StyleManager) Load(theme string) {
	accent, dim, selectedBg := lipgloss.Color("212"), lipgloss.Color("241"), lipgloss.Color("236")
	if theme == "light" {
		accent, dim, selectedBg = lipgloss.Color("126"), lipgloss.Color("245"), lipgloss.Color("254")
	}

	s.Tab = lipgloss.NewStyle().Foreground(dim).Padding(0, 1)
	s.ActiveTab = lipgloss.NewStyle().Bold(true).Foreground(accent).Padding(0, 1)

	s.Outline = lipgloss.NewStyle()
	s.OutlineSelected = lipgloss.NewStyle().Background(selectedBg).Foreground(accent)
	s.OutlineBorder = lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, true, false, false).
		BorderForeground(dim).
		PaddingRight(1)

	s.Status = lipgloss.NewStyle().Foreground(dim)
	s.Error = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	s.Dim = lipgloss.NewStyle().Foreground(dim)
	s.Divider = lipgloss.NewStyle().Foreground(dim)
}

// glamourStyle maps a theme to a glamour standard style
func glamourStyle(theme string) string {
	if _, ok := styles.DefaultStyles[theme]; ok {
		return theme
	}
	return styles.DarkStyle
}

// Global style manager instance
var uiStyles = DefaultStyles()
