// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across clientdesk.
//
// # Key Functions
//
// Display:
//   - TruncateWidth: display-width aware truncation with ellipsis
//   - FormatCountdown: M:SS rendering of a remaining-seconds count
//
// File Operations:
//   - AtomicWriteFile: Crash-safe file writing with fsync
//
// # Usage
//
//	// Fit a user's name into a status bar cell
//	name := util.TruncateWidth(user.Name, 24)
//
//	// Persist the credential slot without leaving a partial file behind
//	err := util.AtomicWriteFile(path, []byte(token), 0600)
package util
