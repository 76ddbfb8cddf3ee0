// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app is the clientdesk terminal application.
//
// It hosts the sign-in and home views in a single Bubble Tea model and wires
// the core components together: every authenticated call goes through a
// transport.Pipeline, client creation goes through a collision.Submitter, and
// each signed-in session owns one session.Timer driven by a session.Monitor
// over the program's input.
//
// Usage:
//
//	m := app.New(app.Options{API: api, Store: store, Session: timerCfg})
//	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseAllMotion())
//	m.Attach(p)
//	defer m.Close()
//	_, err := p.Run()
package app
