// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides reusable UI components for the clientdesk TUI.

# Components

SessionTimeoutOverlay (session_timeout_overlay.go) - The inactivity warning.
It renders a session.State and turns the two bound keys into
SessionConfirmMsg and SessionSignOutMsg. Every other input is ignored.

StatusBar (statusbar.go) - Bottom status bar with the signed-in user, the
request in flight and the session state.

# Usage

	overlay := components.NewSessionTimeoutOverlay()
	overlay.ApplyState(stateMsg.State)
	overlay, cmd = overlay.Update(msg)
*/
package components
