// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the clientdesk TUI.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection. Theme wraps the palette into the concrete styles used by the sign-in
form, the home view, the status bar and the session timeout overlay.

# Color System (colors.go)

  - Cyan - Brand color, focused inputs, key hints
  - Emerald - Success and signed-in states
  - Amber - The session warning and caution states
  - Rose - Errors, rejected requests, sign-out

# Accessibility

Status messages always carry an ASCII shape indicator ([OK], [X], [!], [i])
in addition to color.

# Usage

	theme := styles.NewTheme()
	title := theme.Title.Render("clientdesk")
	hint := styles.RenderWarning("Session expires soon")
*/
package styles
