// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var logger = slog.Default()

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// =============================================================================
// SESSION-LIVENESS STATE
// =============================================================================

// Phase is the position of a Timer in its state machine.
type Phase int

const (
	// PhaseStopped: not started, disabled, or disposed before logging out.
	PhaseStopped Phase = iota
	// PhaseActive: the idle timer is running.
	PhaseActive
	// PhaseWarning: the countdown is running and the warning is visible.
	PhaseWarning
	// PhaseLoggedOut: sign-out was triggered. Terminal.
	PhaseLoggedOut
)

// String returns a string representation of the Phase.
func (p Phase) String() string {
	switch p {
	case PhaseStopped:
		return "STOPPED"
	case PhaseActive:
		return "ACTIVE"
	case PhaseWarning:
		return "WARNING"
	case PhaseLoggedOut:
		return "LOGGED_OUT"
	default:
		return "UNKNOWN"
	}
}

// State is a snapshot of a Timer.
type State struct {
	Phase Phase

	// RemainingSeconds is the countdown value; only meaningful in PhaseWarning.
	RemainingSeconds int

	// Seq increases with every emitted snapshot. Consumers receiving
	// snapshots asynchronously drop any with a Seq at or below the last one
	// they applied.
	Seq uint64
}

// WarningVisible reports whether the warning surface should be shown.
func (s State) WarningVisible() bool {
	return s.Phase == PhaseWarning
}

// =============================================================================
// INACTIVITY TIMER
// =============================================================================

// SignOutFunc ends the session. It is invoked exactly once per transition to
// LoggedOut, on the goroutine that caused the transition, so it should hand
// long-running work off rather than block.
type SignOutFunc func(ctx context.Context) error

// DefaultSignOutTimeout bounds the context passed to the sign-out callback.
const DefaultSignOutTimeout = 10 * time.Second

// Timer is the inactivity state machine. At most one scheduled callback is
// armed at any time: the idle timer while Active, the next countdown tick
// while Warning. Every transition cancels the armed handle first and bumps
// the generation, so a callback that was already running when it was
// cancelled finds a stale generation and does nothing.
type Timer struct {
	cfg            Config
	clock          Clock
	signOut        SignOutFunc
	signOutTimeout time.Duration

	mu        sync.Mutex
	phase     Phase
	remaining int
	seq       uint64
	handle    Handle
	gen       uint64
	disposed  bool

	subs   map[int]func(State)
	nextID int
}

// Option configures a Timer.
type Option func(*Timer)

// WithClock replaces the wall clock, typically with a ManualClock in tests.
func WithClock(c Clock) Option {
	return func(t *Timer) {
		if c != nil {
			t.clock = c
		}
	}
}

// WithSignOutTimeout bounds how long the sign-out callback's context lives.
func WithSignOutTimeout(d time.Duration) Option {
	return func(t *Timer) {
		if d > 0 {
			t.signOutTimeout = d
		}
	}
}

// NewTimer creates a Timer in PhaseStopped. The configuration is copied and
// never changes for the lifetime of the Timer.
func NewTimer(cfg Config, signOut SignOutFunc, opts ...Option) (*Timer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if signOut == nil {
		return nil, fmt.Errorf("%w: sign-out callback is required", ErrInvalidConfig)
	}

	cfg.Signals = cfg.Signals.clone()
	t := &Timer{
		cfg:            cfg,
		clock:          RealClock(),
		signOut:        signOut,
		signOutTimeout: DefaultSignOutTimeout,
		subs:           make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Config returns the Timer's configuration.
func (t *Timer) Config() Config {
	cfg := t.cfg
	cfg.Signals = t.cfg.Signals.clone()
	return cfg
}

// State returns the current snapshot.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// InWarning reports whether the warning is showing. Suitable as a Monitor
// suppress guard.
func (t *Timer) InWarning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase == PhaseWarning
}

// Subscribe registers fn for every emitted snapshot. fn runs outside the
// Timer's lock and may call back into the Timer.
func (t *Timer) Subscribe(fn func(State)) (unsubscribe func()) {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = fn
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, id)
			t.mu.Unlock()
		})
	}
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Start arms the idle timer and enters Active. It is a no-op when the Timer
// is disabled, already started, or disposed.
func (t *Timer) Start() {
	t.mu.Lock()
	if !t.cfg.Enabled || t.disposed || t.phase != PhaseStopped {
		t.mu.Unlock()
		return
	}
	t.phase = PhaseActive
	t.armIdleLocked()
	snap, subs := t.emitLocked()
	t.mu.Unlock()

	logger.Info("session_started",
		"idle_timeout", t.cfg.IdleTimeout,
		"countdown_secs", t.cfg.CountdownSeconds)
	deliver(subs, snap)
}

// NotifyActivity restarts the idle timer while Active. In every other phase
// it does nothing; in particular activity never dismisses the warning.
func (t *Timer) NotifyActivity() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.phase != PhaseActive {
		return
	}
	t.armIdleLocked()
}

// Confirm dismisses the warning and returns to Active with a fresh idle
// period. Outside Warning it does nothing.
func (t *Timer) Confirm() {
	t.mu.Lock()
	if t.phase != PhaseWarning {
		t.mu.Unlock()
		return
	}
	remaining := t.remaining
	t.phase = PhaseActive
	t.remaining = 0
	t.armIdleLocked()
	snap, subs := t.emitLocked()
	t.mu.Unlock()

	logger.Info("session_confirmed", "remaining_secs", remaining)
	deliver(subs, snap)
}

// ForceLogout signs out immediately from Active or Warning.
func (t *Timer) ForceLogout() {
	t.mu.Lock()
	if t.phase != PhaseActive && t.phase != PhaseWarning {
		t.mu.Unlock()
		return
	}
	snap, subs := t.logoutLocked()
	t.mu.Unlock()

	t.finishLogout(snap, subs, "explicit")
}

// Dispose cancels every pending callback and detaches all subscribers.
// Safe to call from any phase and more than once. A Timer that already
// logged out stays in PhaseLoggedOut; otherwise it ends in PhaseStopped.
func (t *Timer) Dispose() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.disposed {
		return
	}
	t.disposed = true
	t.cancelLocked()
	if t.phase != PhaseLoggedOut {
		t.phase = PhaseStopped
	}
	t.remaining = 0
	t.subs = make(map[int]func(State))

	logger.Info("session_disposed")
}

// =============================================================================
// TIMER CALLBACKS
// =============================================================================

func (t *Timer) onIdle(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.phase != PhaseActive {
		t.mu.Unlock()
		return
	}
	t.phase = PhaseWarning
	t.remaining = t.cfg.CountdownSeconds
	t.armTickLocked()
	snap, subs := t.emitLocked()
	t.mu.Unlock()

	logger.Info("session_warning", "remaining_secs", snap.RemainingSeconds)
	deliver(subs, snap)
}

func (t *Timer) onTick(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.phase != PhaseWarning {
		t.mu.Unlock()
		return
	}

	t.remaining--
	if t.remaining <= 0 {
		snap, subs := t.logoutLocked()
		t.mu.Unlock()
		t.finishLogout(snap, subs, "auto")
		return
	}

	t.armTickLocked()
	snap, subs := t.emitLocked()
	t.mu.Unlock()

	deliver(subs, snap)
}

// =============================================================================
// INTERNALS
// =============================================================================

// cancelLocked stops the armed handle and invalidates any callback already
// in flight.
func (t *Timer) cancelLocked() {
	if t.handle != nil {
		t.handle.Stop()
		t.handle = nil
	}
	t.gen++
}

func (t *Timer) armIdleLocked() {
	t.cancelLocked()
	gen := t.gen
	t.handle = t.clock.AfterFunc(t.cfg.IdleTimeout, func() { t.onIdle(gen) })
}

func (t *Timer) armTickLocked() {
	t.cancelLocked()
	gen := t.gen
	t.handle = t.clock.AfterFunc(time.Second, func() { t.onTick(gen) })
}

func (t *Timer) logoutLocked() (State, []func(State)) {
	t.cancelLocked()
	t.phase = PhaseLoggedOut
	t.remaining = 0
	return t.emitLocked()
}

// finishLogout runs outside the lock. The phase is already LoggedOut, so
// whatever the callback does cannot leave the warning stuck on screen.
func (t *Timer) finishLogout(snap State, subs []func(State), reason string) {
	logger.Info("session_logout", "reason", reason)
	deliver(subs, snap)

	ctx, cancel := context.WithTimeout(context.Background(), t.signOutTimeout)
	defer cancel()

	if err := t.callSignOut(ctx); err != nil {
		logger.Error("session_signout_failed", "reason", reason, "error", err)
	}
}

func (t *Timer) callSignOut(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sign-out callback panicked: %v", r)
		}
	}()
	return t.signOut(ctx)
}

func (t *Timer) snapshotLocked() State {
	s := State{Phase: t.phase, Seq: t.seq}
	if t.phase == PhaseWarning {
		s.RemainingSeconds = t.remaining
	}
	return s
}

func (t *Timer) emitLocked() (State, []func(State)) {
	t.seq++
	subs := make([]func(State), 0, len(t.subs))
	for _, fn := range t.subs {
		subs = append(subs, fn)
	}
	return t.snapshotLocked(), subs
}

func deliver(subs []func(State), s State) {
	for _, fn := range subs {
		fn(s)
	}
}
