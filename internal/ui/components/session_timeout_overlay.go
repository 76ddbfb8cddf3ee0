// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/clientdesk/internal/session"
	"github.com/jeranaias/clientdesk/internal/ui/styles"
	"github.com/jeranaias/clientdesk/internal/util"
)

// =============================================================================
// SESSION TIMEOUT OVERLAY
// =============================================================================

// OverlayKeyMap binds the two overlay actions.
type OverlayKeyMap struct {
	Confirm key.Binding
	SignOut key.Binding
}

// DefaultOverlayKeys returns the default bindings: enter/c to stay signed in,
// l/q to sign out now.
func DefaultOverlayKeys() OverlayKeyMap {
	return OverlayKeyMap{
		Confirm: key.NewBinding(
			key.WithKeys("enter", "c"),
			key.WithHelp("enter", "stay signed in"),
		),
		SignOut: key.NewBinding(
			key.WithKeys("l", "q"),
			key.WithHelp("l", "sign out now"),
		),
	}
}

// SessionTimeoutOverlay is the inactivity warning. It only renders the
// timer's state; it never dismisses itself. Only the two bound actions do
// anything, so a stray key or mouse movement cannot extend the session.
type SessionTimeoutOverlay struct {
	visible   bool
	remaining int
	keys      OverlayKeyMap

	width  int
	height int
}

// NewSessionTimeoutOverlay creates a hidden overlay.
func NewSessionTimeoutOverlay() SessionTimeoutOverlay {
	return SessionTimeoutOverlay{keys: DefaultOverlayKeys()}
}

// SessionConfirmMsg is emitted when the user chooses to stay signed in.
type SessionConfirmMsg struct{}

// SessionSignOutMsg is emitted when the user chooses to sign out now.
type SessionSignOutMsg struct{}

// =============================================================================
// STATE
// =============================================================================

// SetSize sets the overlay dimensions.
func (o *SessionTimeoutOverlay) SetSize(width, height int) {
	o.width = width
	o.height = height
}

// SetState shows or hides the overlay with the given countdown.
func (o *SessionTimeoutOverlay) SetState(visible bool, remainingSeconds int) {
	o.visible = visible
	o.remaining = remainingSeconds
	if !visible {
		o.remaining = 0
	}
}

// ApplyState mirrors a timer snapshot.
func (o *SessionTimeoutOverlay) ApplyState(s session.State) {
	o.SetState(s.WarningVisible(), s.RemainingSeconds)
}

// IsVisible returns whether the overlay is currently visible.
func (o SessionTimeoutOverlay) IsVisible() bool {
	return o.visible
}

// RemainingSeconds returns the countdown value on display.
func (o SessionTimeoutOverlay) RemainingSeconds() int {
	return o.remaining
}

// Keys returns the overlay's key bindings.
func (o SessionTimeoutOverlay) Keys() OverlayKeyMap {
	return o.keys
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init initializes the overlay (no-op for overlays).
func (o SessionTimeoutOverlay) Init() tea.Cmd {
	return nil
}

// Update handles messages for the overlay.
func (o SessionTimeoutOverlay) Update(msg tea.Msg) (SessionTimeoutOverlay, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		o.width = msg.Width
		o.height = msg.Height

	case tea.KeyMsg:
		if !o.visible {
			return o, nil
		}
		switch {
		case key.Matches(msg, o.keys.Confirm):
			return o, func() tea.Msg { return SessionConfirmMsg{} }
		case key.Matches(msg, o.keys.SignOut):
			return o, func() tea.Msg { return SessionSignOutMsg{} }
		}
	}

	return o, nil
}

// View renders the overlay, or "" while hidden.
func (o SessionTimeoutOverlay) View() string {
	if !o.visible {
		return ""
	}

	width := o.width
	if width == 0 {
		width = 60
	}
	height := o.height
	if height == 0 {
		height = 24
	}

	maxWidth := width - 8
	if maxWidth < 40 {
		maxWidth = 40
	}
	if maxWidth > 60 {
		maxWidth = 60
	}

	titleStyle := lipgloss.NewStyle().
		Foreground(styles.Amber).
		Bold(true)

	timeStyle := lipgloss.NewStyle().
		Foreground(styles.Amber).
		Bold(true)

	msgStyle := lipgloss.NewStyle().
		Foreground(styles.TextPrimary).
		Width(maxWidth - 8).
		Align(lipgloss.Center)

	keyStyle := lipgloss.NewStyle().
		Foreground(styles.Cyan).
		Bold(true)

	hintStyle := lipgloss.NewStyle().
		Foreground(styles.TextSecondary)

	confirm := o.keys.Confirm.Help()
	signOut := o.keys.SignOut.Help()

	content := lipgloss.JoinVertical(lipgloss.Center,
		titleStyle.Render(styles.StatusIndicators.Warning+" Are you still there?"),
		"",
		msgStyle.Render("You will be signed out in "+timeStyle.Render(util.FormatCountdown(o.remaining))+" due to inactivity."),
		"",
		keyStyle.Render(confirm.Key)+hintStyle.Render(" "+confirm.Desc)+
			hintStyle.Render("    ")+
			keyStyle.Render(signOut.Key)+hintStyle.Render(" "+signOut.Desc),
	)

	box := lipgloss.NewStyle().
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(styles.Amber).
		Padding(1, 3).
		Width(maxWidth).
		Align(lipgloss.Center).
		Render(content)

	return lipgloss.Place(
		width, height,
		lipgloss.Center, lipgloss.Center,
		box,
		lipgloss.WithWhitespaceBackground(styles.SurfaceDim),
	)
}
