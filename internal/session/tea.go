// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// ACTIVITY SOURCE
// =============================================================================

// TeaSource is a Source fed from a Bubble Tea Update loop. The host calls
// Dispatch with every message it receives; input messages are translated to
// activity signals and delivered to the subscribed listeners.
type TeaSource struct {
	mu        sync.Mutex
	listeners map[Signal]map[int]func()
	nextID    int
}

// NewTeaSource creates an empty TeaSource.
func NewTeaSource() *TeaSource {
	return &TeaSource{listeners: make(map[Signal]map[int]func())}
}

// Subscribe registers fn for sig.
func (s *TeaSource) Subscribe(sig Signal, fn func()) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	if s.listeners[sig] == nil {
		s.listeners[sig] = make(map[int]func())
	}
	s.listeners[sig][id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners[sig], id)
			if len(s.listeners[sig]) == 0 {
				delete(s.listeners, sig)
			}
		})
	}
}

// Dispatch translates msg into an activity signal, if it is one, and
// notifies the listeners. It reports whether msg counted as activity.
func (s *TeaSource) Dispatch(msg tea.Msg) bool {
	sig, ok := SignalFor(msg)
	if !ok {
		return false
	}
	s.Emit(sig)
	return true
}

// Emit raises sig directly. Hosts use it for signals the terminal cannot
// produce, such as touchstart.
func (s *TeaSource) Emit(sig Signal) {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.listeners[sig]))
	for _, fn := range s.listeners[sig] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Listeners returns the number of live subscriptions across all signals.
func (s *TeaSource) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, fns := range s.listeners {
		n += len(fns)
	}
	return n
}

// SignalFor maps a Bubble Tea input message to an activity signal.
func SignalFor(msg tea.Msg) (Signal, bool) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return SignalKeyPress, true
	case tea.MouseMsg:
		switch msg.Type {
		case tea.MouseLeft, tea.MouseRight, tea.MouseMiddle:
			return SignalPointerDown, true
		case tea.MouseRelease:
			return SignalClick, true
		case tea.MouseMotion:
			return SignalPointerMove, true
		case tea.MouseWheelUp, tea.MouseWheelDown:
			return SignalScroll, true
		}
	}
	return "", false
}

// =============================================================================
// STATE DELIVERY
// =============================================================================

// StateMsg carries a Timer snapshot into a Bubble Tea program. Timer
// identifies the sender so a host that replaces its Timer can drop
// snapshots still in flight from the old one.
type StateMsg struct {
	State State
	Timer *Timer
}

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// Bind forwards every Timer snapshot to sender as a StateMsg. Delivery is
// asynchronous because a Timer transition can be triggered from inside the
// program's own Update, where a blocking Send would deadlock; receivers
// order snapshots by State.Seq.
func Bind(t *Timer, sender Sender) (unbind func()) {
	return t.Subscribe(func(s State) {
		go sender.Send(StateMsg{State: s, Timer: t})
	})
}
