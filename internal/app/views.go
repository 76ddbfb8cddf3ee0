// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/clientdesk/internal/ui/styles"
)

// View renders the model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	// The overlay covers the whole screen while the countdown runs.
	if m.overlay.IsVisible() {
		return m.overlay.View()
	}

	var body string
	switch m.view {
	case ViewHome:
		body = m.viewHome()
	default:
		body = m.viewLogin()
	}

	status := m.statusBar.View()
	if m.height <= 0 {
		return lipgloss.JoinVertical(lipgloss.Left, body, status)
	}

	bodyHeight := m.height - lipgloss.Height(status)
	if bodyHeight < 0 {
		bodyHeight = 0
	}
	body = lipgloss.NewStyle().Height(bodyHeight).MaxHeight(bodyHeight).Render(body)
	return lipgloss.JoinVertical(lipgloss.Left, body, status)
}

func (m *Model) viewLogin() string {
	t := m.theme
	var b strings.Builder

	b.WriteString(t.Title.Render("clientdesk"))
	b.WriteString("\n")
	b.WriteString(t.Subtitle.Render("Sign in to continue"))
	b.WriteString("\n\n")

	if m.notice != "" {
		b.WriteString(styles.RenderInfo(m.notice))
		b.WriteString("\n\n")
	}

	b.WriteString(m.field("Email", m.email.View(), m.focus == fieldEmail))
	b.WriteString("\n")
	b.WriteString(m.field("Password", m.password.View(), m.focus == fieldPassword))
	b.WriteString("\n\n")

	b.WriteString(m.footer("enter", "sign in", "tab", "next field"))

	return t.App.Render(t.Card.Render(b.String()))
}

func (m *Model) viewHome() string {
	t := m.theme
	var b strings.Builder

	b.WriteString(t.Title.Render("Welcome, " + m.user.DisplayName()))
	b.WriteString("\n")
	if m.user.Role != "" {
		b.WriteString(t.Subtitle.Render(m.user.Role))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(t.Label.Render("New client"))
	b.WriteString("\n")
	b.WriteString(m.field("Name", m.clientName.View(), true))
	b.WriteString("\n\n")

	if m.lastClient != nil {
		b.WriteString(styles.RenderSuccess("Created " + m.lastClient.Name + " as " + m.lastClient.Code))
		b.WriteString("\n\n")
	}

	b.WriteString(m.footer("enter", "create client", "ctrl+x", "sign out"))

	return t.App.Render(t.Card.Render(b.String()))
}

// field renders a labelled input box.
func (m *Model) field(label, input string, focused bool) string {
	box := m.theme.InputBlurred
	if focused {
		box = m.theme.InputFocused
	}
	return lipgloss.JoinHorizontal(lipgloss.Center,
		m.theme.Label.Render(label),
		box.Render(input),
	)
}

// footer renders the error line (or spinner) followed by key hints given
// as key/description pairs.
func (m *Model) footer(pairs ...string) string {
	t := m.theme
	var b strings.Builder

	switch {
	case m.busy:
		b.WriteString(m.spinner.View() + " " + t.Hint.Render("working..."))
		b.WriteString("\n")
	case m.formErr != "":
		b.WriteString(t.FormError.Render(m.formErr))
		if m.retry {
			b.WriteString(t.Hint.Render("  press enter to retry"))
		}
		b.WriteString("\n")
	}

	hints := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		hints = append(hints, t.KeyHint.Render(pairs[i])+" "+t.Hint.Render(pairs[i+1]))
	}
	hints = append(hints, t.KeyHint.Render("ctrl+c")+" "+t.Hint.Render("quit"))
	b.WriteString(strings.Join(hints, t.Hint.Render("  |  ")))

	return b.String()
}
