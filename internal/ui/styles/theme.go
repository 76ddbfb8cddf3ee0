// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// VIEW STYLES
	// ==========================================================================

	App      lipgloss.Style
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Label    lipgloss.Style
	Hint     lipgloss.Style
	KeyHint  lipgloss.Style
	Card     lipgloss.Style

	// ==========================================================================
	// FORM STYLES
	// ==========================================================================

	InputFocused lipgloss.Style
	InputBlurred lipgloss.Style
	FormError    lipgloss.Style

	// ==========================================================================
	// STATUS BAR STYLES
	// ==========================================================================

	StatusBar       lipgloss.Style
	StatusUser      lipgloss.Style
	StatusActive    lipgloss.Style
	StatusWarning   lipgloss.Style
	StatusSignedOut lipgloss.Style
}

// NewTheme creates a theme for the current terminal.
func NewTheme() *Theme {
	return NewThemeWithProfile(termenv.ColorProfile(), termenv.HasDarkBackground())
}

// NewThemeWithProfile creates a theme for an explicit color profile, which
// keeps rendering deterministic in tests.
func NewThemeWithProfile(profile termenv.Profile, isDark bool) *Theme {
	t := &Theme{
		IsDark:       isDark,
		HasTrueColor: profile == termenv.TrueColor,
		ColorProfile: profile,
	}
	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	t.App = lipgloss.NewStyle().Padding(1, 2)

	t.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.Subtitle = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	t.Label = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Width(10)

	t.Hint = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.KeyHint = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.Card = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(1, 2)

	t.InputFocused = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(Cyan).
		Padding(0, 1)

	t.InputBlurred = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.FormError = lipgloss.NewStyle().
		Foreground(Rose)

	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)

	t.StatusUser = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Background(SurfaceDim).
		Bold(true)

	t.StatusActive = lipgloss.NewStyle().
		Foreground(Emerald).
		Background(SurfaceDim)

	t.StatusWarning = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Amber).
		Bold(true).
		Padding(0, 1)

	t.StatusSignedOut = lipgloss.NewStyle().
		Foreground(Rose).
		Background(SurfaceDim)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)
