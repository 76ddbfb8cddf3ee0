// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/clientdesk/internal/session"
	"github.com/jeranaias/clientdesk/internal/ui/styles"
	"github.com/jeranaias/clientdesk/internal/util"
)

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// StatusBar is the bottom line: who is signed in, what is in flight, and the
// session state.
type StatusBar struct {
	theme *styles.Theme
	width int

	user    string
	phase   session.Phase
	seconds int
	message string
}

// NewStatusBar creates a status bar.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{theme: theme}
}

// SetWidth sets the available columns.
func (s *StatusBar) SetWidth(width int) {
	s.width = width
}

// SetUser sets the signed-in display name. Empty means signed out.
func (s *StatusBar) SetUser(name string) {
	s.user = name
}

// SetSession mirrors a timer snapshot.
func (s *StatusBar) SetSession(st session.State) {
	s.phase = st.Phase
	s.seconds = st.RemainingSeconds
}

// SetMessage sets a transient message, such as a request in flight.
func (s *StatusBar) SetMessage(msg string) {
	s.message = msg
}

// View renders the status bar.
func (s *StatusBar) View() string {
	width := s.width
	if width <= 0 {
		width = 80
	}

	right := s.renderSession()
	rightWidth := lipgloss.Width(right)

	// Two columns of padding from the bar style.
	avail := width - rightWidth - 3
	if avail < 0 {
		avail = 0
	}

	left := s.user
	if left == "" {
		left = "not signed in"
	}
	if s.message != "" {
		left += "  " + s.message
	}
	left = s.theme.StatusUser.Render(util.TruncateWidth(left, avail))

	gap := width - 2 - lipgloss.Width(left) - rightWidth
	if gap < 1 {
		gap = 1
	}

	return s.theme.StatusBar.
		Width(width).
		Render(left + strings.Repeat(" ", gap) + right)
}

func (s *StatusBar) renderSession() string {
	switch s.phase {
	case session.PhaseActive:
		return s.theme.StatusActive.Render(styles.StatusIndicators.Active + " session active")
	case session.PhaseWarning:
		return s.theme.StatusWarning.Render(styles.StatusIndicators.Warning + " signing out in " + util.FormatCountdown(s.seconds))
	case session.PhaseLoggedOut:
		return s.theme.StatusSignedOut.Render("signed out")
	default:
		return ""
	}
}
