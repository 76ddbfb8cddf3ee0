// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session detects user inactivity and forces sign-out.
//
// A Timer moves through Active, Warning and LoggedOut. While Active an idle
// timer runs and every activity notification restarts it. When it fires the
// Timer enters Warning and counts down one second at a time; only an explicit
// Confirm returns it to Active, incidental activity is ignored. A countdown
// reaching zero, or ForceLogout, invokes the sign-out callback and ends in
// LoggedOut, which is terminal for the instance.
//
// # Key Types
//
//   - Timer: the inactivity state machine
//   - Monitor: forwards activity signals from a Source to the Timer
//   - TeaSource: a Source fed from a Bubble Tea Update loop
//   - Clock / ManualClock: timer scheduling, real or driven by tests
//
// # Usage
//
//	timer, err := session.NewTimer(cfg, signOut)
//	if err != nil {
//	    return err
//	}
//	source := session.NewTeaSource()
//	monitor := session.NewMonitor(cfg.Signals, source,
//	    session.WithSuppress(timer.InWarning))
//	monitor.Attach(timer.NotifyActivity)
//	timer.Start()
//	defer func() {
//	    monitor.Detach()
//	    timer.Dispose()
//	}()
package session
