// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements clientdesk's command-line surface.
//
// Parse maps os.Args to a Command; each Handle* function runs one command
// and returns an error for main to report. Headless commands share the
// credential slot with the TUI, so signing in from the shell signs in every
// running clientdesk instance that watches the same slot.
//
// Commands:
//
//	clientdesk                          Start the TUI (default)
//	clientdesk login [--email E]        Sign in interactively
//	clientdesk logout                   Revoke and forget the credential
//	clientdesk status [--json]          Show configuration and session state
//	clientdesk clients create --name N  Create a client record
//	clientdesk help | version
package cli
