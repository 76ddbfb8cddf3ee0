// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "sync"

// Source delivers occurrences of activity signals. It plays the role of the
// document scope: one subscription per signal, removable through the
// returned function.
type Source interface {
	Subscribe(sig Signal, fn func()) (unsubscribe func())
}

// Monitor forwards every configured activity signal from a Source to one
// notify function. Each occurrence invokes notify exactly once; nothing is
// coalesced or throttled.
type Monitor struct {
	signals  SignalSet
	source   Source
	suppress func() bool

	mu     sync.Mutex
	notify func()
	unsubs []func()
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithSuppress skips notification while guard returns true, for example
// while the timeout warning is on screen.
func WithSuppress(guard func() bool) MonitorOption {
	return func(m *Monitor) {
		m.suppress = guard
	}
}

// NewMonitor creates a detached Monitor for signals on source.
func NewMonitor(signals SignalSet, source Source, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		signals: signals.clone(),
		source:  source,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Attach subscribes one listener per configured signal. Attaching an
// already attached Monitor replaces the previous subscriptions.
func (m *Monitor) Attach(notify func()) {
	m.Detach()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.notify = notify
	for _, sig := range m.signals.Slice() {
		m.unsubs = append(m.unsubs, m.source.Subscribe(sig, m.fire))
	}
}

// Detach removes every subscription and drops the notify reference.
// Calling it on a detached Monitor does nothing.
func (m *Monitor) Detach() {
	m.mu.Lock()
	unsubs := m.unsubs
	m.unsubs = nil
	m.notify = nil
	m.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

// Attached reports whether the Monitor holds subscriptions.
func (m *Monitor) Attached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notify != nil
}

func (m *Monitor) fire() {
	m.mu.Lock()
	notify := m.notify
	m.mu.Unlock()

	if notify == nil {
		return
	}
	if m.suppress != nil && m.suppress() {
		return
	}
	notify()
}
