// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// HELPERS
// =============================================================================

type signOutRecorder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *signOutRecorder) signOut(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.err
}

func (r *signOutRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) all() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

// leakyClock never cancels: Stop reports success but the callback still
// fires. Used to prove stale callbacks are inert.
type leakyClock struct{ *ManualClock }

type leakyHandle struct{}

func (leakyHandle) Stop() bool { return true }

func (c leakyClock) AfterFunc(d time.Duration, fn func()) Handle {
	c.ManualClock.AfterFunc(d, fn)
	return leakyHandle{}
}

func testConfig(idle time.Duration, countdown int) Config {
	return Config{
		IdleTimeout:      idle,
		CountdownSeconds: countdown,
		Signals:          AllSignals(),
		Enabled:          true,
	}
}

func newTestTimer(t *testing.T, cfg Config) (*Timer, *ManualClock, *signOutRecorder) {
	t.Helper()
	clock := NewManualClock(time.Unix(1_700_000_000, 0))
	rec := &signOutRecorder{}
	timer, err := NewTimer(cfg, rec.signOut, WithClock(clock))
	require.NoError(t, err)
	return timer, clock, rec
}

// =============================================================================
// CONFIGURATION
// =============================================================================

func TestNewTimer_RejectsInvalidConfig(t *testing.T) {
	noop := func(context.Context) error { return nil }
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero idle timeout", testConfig(0, 60)},
		{"negative idle timeout", testConfig(-time.Second, 60)},
		{"zero countdown", testConfig(time.Second, 0)},
		{"unknown signal", Config{
			IdleTimeout:      time.Second,
			CountdownSeconds: 5,
			Signals:          NewSignalSet("hover"),
			Enabled:          true,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTimer(tt.cfg, noop)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}

	_, err := NewTimer(testConfig(time.Second, 5), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig, "nil sign-out callback")
}

func TestParseSignals(t *testing.T) {
	set, err := ParseSignals([]string{"KeyPress", " scroll "})
	require.NoError(t, err)
	assert.Equal(t, []Signal{SignalKeyPress, SignalScroll}, set.Slice())

	_, err = ParseSignals([]string{"keypress", "wiggle"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30*time.Minute, cfg.IdleTimeout)
	assert.Equal(t, 60, cfg.CountdownSeconds)
	assert.Len(t, cfg.Signals, 6)
	assert.True(t, cfg.Enabled)
}

// =============================================================================
// STATE MACHINE
// =============================================================================

func TestTimer_IdleCountdownLogout(t *testing.T) {
	timer, clock, signOut := newTestTimer(t, testConfig(1000*time.Millisecond, 3))
	states := &stateRecorder{}
	timer.Subscribe(states.record)

	assert.Equal(t, PhaseStopped, timer.State().Phase)
	timer.Start()
	assert.Equal(t, PhaseActive, timer.State().Phase)

	clock.Advance(999 * time.Millisecond)
	assert.Equal(t, PhaseActive, timer.State().Phase)

	clock.Advance(time.Millisecond)
	s := timer.State()
	assert.Equal(t, PhaseWarning, s.Phase)
	assert.Equal(t, 3, s.RemainingSeconds)
	assert.True(t, s.WarningVisible())

	clock.Advance(time.Second)
	assert.Equal(t, 2, timer.State().RemainingSeconds)
	clock.Advance(time.Second)
	assert.Equal(t, 1, timer.State().RemainingSeconds)
	assert.Equal(t, 0, signOut.count())

	clock.Advance(time.Second)
	s = timer.State()
	assert.Equal(t, PhaseLoggedOut, s.Phase)
	assert.Equal(t, 0, s.RemainingSeconds)
	assert.False(t, s.WarningVisible())
	assert.Equal(t, 1, signOut.count(), "sign-out should run exactly once")

	clock.Advance(time.Hour)
	assert.Equal(t, 1, signOut.count())
	assert.Equal(t, 0, clock.Pending(), "no timers should remain after logout")

	var phases []Phase
	var remaining []int
	for _, st := range states.all() {
		phases = append(phases, st.Phase)
		remaining = append(remaining, st.RemainingSeconds)
	}
	assert.Equal(t, []Phase{PhaseActive, PhaseWarning, PhaseWarning, PhaseWarning, PhaseLoggedOut}, phases)
	assert.Equal(t, []int{0, 3, 2, 1, 0}, remaining)
}

func TestTimer_ActivityRestartsIdleTimer(t *testing.T) {
	timer, clock, _ := newTestTimer(t, testConfig(time.Second, 3))
	timer.Start()

	for i := 0; i < 5; i++ {
		clock.Advance(900 * time.Millisecond)
		timer.NotifyActivity()
	}
	assert.Equal(t, PhaseActive, timer.State().Phase, "activity should keep the session active")

	clock.Advance(999 * time.Millisecond)
	assert.Equal(t, PhaseActive, timer.State().Phase)
	clock.Advance(time.Millisecond)
	assert.Equal(t, PhaseWarning, timer.State().Phase)
}

func TestTimer_ActivityIgnoredDuringWarning(t *testing.T) {
	timer, clock, signOut := newTestTimer(t, testConfig(time.Second, 3))
	timer.Start()
	clock.Advance(time.Second)
	require.True(t, timer.InWarning())

	timer.NotifyActivity()
	s := timer.State()
	assert.Equal(t, PhaseWarning, s.Phase, "activity must not dismiss the warning")
	assert.Equal(t, 3, s.RemainingSeconds)

	clock.Advance(time.Second)
	timer.NotifyActivity()
	assert.Equal(t, 2, timer.State().RemainingSeconds, "countdown should keep running")

	clock.Advance(2 * time.Second)
	assert.Equal(t, PhaseLoggedOut, timer.State().Phase)
	assert.Equal(t, 1, signOut.count())
}

func TestTimer_ConfirmResetsToActive(t *testing.T) {
	timer, clock, signOut := newTestTimer(t, testConfig(time.Second, 3))
	timer.Start()
	clock.Advance(2 * time.Second)
	require.Equal(t, 2, timer.State().RemainingSeconds)

	timer.Confirm()
	assert.Equal(t, PhaseActive, timer.State().Phase)
	assert.Equal(t, 1, clock.Pending(), "only the fresh idle timer should be armed")

	// The old countdown tick must not reach the state.
	clock.Advance(999 * time.Millisecond)
	assert.Equal(t, PhaseActive, timer.State().Phase)
	clock.Advance(time.Millisecond)
	s := timer.State()
	assert.Equal(t, PhaseWarning, s.Phase)
	assert.Equal(t, 3, s.RemainingSeconds, "countdown should restart from the full value")
	assert.Equal(t, 0, signOut.count())
}

func TestTimer_ConfirmOutsideWarningIsNoop(t *testing.T) {
	timer, clock, _ := newTestTimer(t, testConfig(time.Second, 3))
	timer.Confirm()
	assert.Equal(t, PhaseStopped, timer.State().Phase)

	timer.Start()
	before := timer.State()
	timer.Confirm()
	assert.Equal(t, before, timer.State())

	clock.Advance(time.Second)
	assert.Equal(t, PhaseWarning, timer.State().Phase)
}

func TestTimer_ForceLogout(t *testing.T) {
	t.Run("from active", func(t *testing.T) {
		timer, clock, signOut := newTestTimer(t, testConfig(time.Second, 3))
		timer.Start()
		timer.ForceLogout()
		assert.Equal(t, PhaseLoggedOut, timer.State().Phase)
		assert.Equal(t, 1, signOut.count())
		assert.Equal(t, 0, clock.Pending())
	})

	t.Run("from warning", func(t *testing.T) {
		timer, clock, signOut := newTestTimer(t, testConfig(time.Second, 3))
		timer.Start()
		clock.Advance(time.Second)
		timer.ForceLogout()
		assert.Equal(t, PhaseLoggedOut, timer.State().Phase)

		clock.Advance(10 * time.Second)
		assert.Equal(t, 1, signOut.count(), "countdown must not sign out a second time")
	})

	t.Run("repeated", func(t *testing.T) {
		timer, _, signOut := newTestTimer(t, testConfig(time.Second, 3))
		timer.Start()
		timer.ForceLogout()
		timer.ForceLogout()
		assert.Equal(t, 1, signOut.count())
	})

	t.Run("before start", func(t *testing.T) {
		timer, _, signOut := newTestTimer(t, testConfig(time.Second, 3))
		timer.ForceLogout()
		assert.Equal(t, PhaseStopped, timer.State().Phase)
		assert.Equal(t, 0, signOut.count())
	})
}

func TestTimer_LoggedOutIsTerminal(t *testing.T) {
	timer, clock, signOut := newTestTimer(t, testConfig(time.Second, 1))
	timer.Start()
	clock.Advance(2 * time.Second)
	require.Equal(t, PhaseLoggedOut, timer.State().Phase)

	timer.Start()
	timer.NotifyActivity()
	timer.Confirm()
	timer.ForceLogout()
	clock.Advance(time.Minute)

	assert.Equal(t, PhaseLoggedOut, timer.State().Phase)
	assert.Equal(t, 1, signOut.count())
	assert.Equal(t, 0, clock.Pending())
}

func TestTimer_Disabled(t *testing.T) {
	cfg := testConfig(time.Second, 3)
	cfg.Enabled = false
	timer, clock, signOut := newTestTimer(t, cfg)

	timer.Start()
	assert.Equal(t, PhaseStopped, timer.State().Phase)
	assert.Equal(t, 0, clock.Pending())

	clock.Advance(time.Hour)
	assert.Equal(t, 0, signOut.count())
}

func TestTimer_AtMostOneArmedHandle(t *testing.T) {
	timer, clock, _ := newTestTimer(t, testConfig(time.Second, 5))
	timer.Start()
	for i := 0; i < 10; i++ {
		timer.NotifyActivity()
		assert.LessOrEqual(t, clock.Pending(), 1)
	}
	clock.Advance(time.Second)
	for i := 0; i < 3; i++ {
		assert.Equal(t, 1, clock.Pending())
		clock.Advance(time.Second)
	}
	timer.Confirm()
	assert.Equal(t, 1, clock.Pending())
}

// =============================================================================
// DISPOSAL
// =============================================================================

func TestTimer_DisposeCancelsEverything(t *testing.T) {
	t.Run("while active", func(t *testing.T) {
		timer, clock, signOut := newTestTimer(t, testConfig(time.Second, 3))
		timer.Start()
		timer.Dispose()
		assert.Equal(t, PhaseStopped, timer.State().Phase)
		assert.Equal(t, 0, clock.Pending())
		clock.Advance(time.Hour)
		assert.Equal(t, 0, signOut.count())
	})

	t.Run("while warning", func(t *testing.T) {
		timer, clock, signOut := newTestTimer(t, testConfig(time.Second, 3))
		timer.Start()
		clock.Advance(time.Second)
		timer.Dispose()
		assert.Equal(t, 0, clock.Pending())
		clock.Advance(time.Hour)
		assert.Equal(t, 0, signOut.count())
		assert.False(t, timer.InWarning())
	})

	t.Run("after logout", func(t *testing.T) {
		timer, _, _ := newTestTimer(t, testConfig(time.Second, 3))
		timer.Start()
		timer.ForceLogout()
		timer.Dispose()
		assert.Equal(t, PhaseLoggedOut, timer.State().Phase)
	})

	t.Run("idempotent", func(t *testing.T) {
		timer, _, _ := newTestTimer(t, testConfig(time.Second, 3))
		timer.Dispose()
		timer.Dispose()
		timer.Start()
		assert.Equal(t, PhaseStopped, timer.State().Phase, "a disposed timer cannot be restarted")
	})
}

func TestTimer_StaleCallbacksAreInert(t *testing.T) {
	manual := NewManualClock(time.Unix(0, 0))
	clock := leakyClock{manual}
	signOut := &signOutRecorder{}
	timer, err := NewTimer(testConfig(time.Second, 2), signOut.signOut, WithClock(clock))
	require.NoError(t, err)

	timer.Start()
	timer.NotifyActivity()
	timer.NotifyActivity()

	// Three idle callbacks are scheduled for the same instant; only the last
	// one is current.
	states := &stateRecorder{}
	timer.Subscribe(states.record)
	manual.Advance(time.Second)
	assert.Len(t, states.all(), 1, "only one warning transition")

	timer.Dispose()
	manual.Advance(time.Hour)
	assert.Equal(t, PhaseStopped, timer.State().Phase)
	assert.Equal(t, 0, signOut.count(), "no callback may take effect after Dispose")
}

func TestTimer_DisposeDropsSubscribers(t *testing.T) {
	timer, _, _ := newTestTimer(t, testConfig(time.Second, 3))
	states := &stateRecorder{}
	timer.Subscribe(states.record)
	timer.Dispose()
	timer.Start()
	assert.Empty(t, states.all())
}

// =============================================================================
// SIGN-OUT FAILURES
// =============================================================================

func TestTimer_SignOutErrorSwallowed(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	rec := &signOutRecorder{err: errors.New("backend unreachable")}
	timer, err := NewTimer(testConfig(time.Second, 1), rec.signOut, WithClock(clock))
	require.NoError(t, err)

	timer.Start()
	clock.Advance(2 * time.Second)
	assert.Equal(t, PhaseLoggedOut, timer.State().Phase)
	assert.Equal(t, 1, rec.count())
}

func TestTimer_SignOutPanicSwallowed(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	timer, err := NewTimer(testConfig(time.Second, 1), func(context.Context) error {
		panic("boom")
	}, WithClock(clock))
	require.NoError(t, err)

	timer.Start()
	assert.NotPanics(t, func() { timer.ForceLogout() })
	assert.Equal(t, PhaseLoggedOut, timer.State().Phase)
}

func TestTimer_SignOutContextDeadline(t *testing.T) {
	var deadline time.Time
	var ok bool
	timer, err := NewTimer(testConfig(time.Second, 1), func(ctx context.Context) error {
		deadline, ok = ctx.Deadline()
		return nil
	}, WithClock(NewManualClock(time.Unix(0, 0))), WithSignOutTimeout(2*time.Second))
	require.NoError(t, err)

	timer.Start()
	timer.ForceLogout()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(2*time.Second), deadline, time.Second)
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

func TestTimer_SeqIncreases(t *testing.T) {
	timer, clock, _ := newTestTimer(t, testConfig(time.Second, 3))
	states := &stateRecorder{}
	timer.Subscribe(states.record)

	timer.Start()
	clock.Advance(2 * time.Second)
	timer.Confirm()
	timer.ForceLogout()

	all := states.all()
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		assert.Greater(t, all[i].Seq, all[i-1].Seq)
	}
	assert.Equal(t, all[len(all)-1].Seq, timer.State().Seq)
}

func TestTimer_Unsubscribe(t *testing.T) {
	timer, clock, _ := newTestTimer(t, testConfig(time.Second, 3))
	states := &stateRecorder{}
	unsub := timer.Subscribe(states.record)

	timer.Start()
	unsub()
	unsub()
	clock.Advance(time.Second)
	assert.Len(t, states.all(), 1)
}

func TestTimer_SubscriberMayReenter(t *testing.T) {
	timer, clock, signOut := newTestTimer(t, testConfig(time.Second, 3))
	timer.Subscribe(func(s State) {
		if s.Phase == PhaseWarning && s.RemainingSeconds == 2 {
			timer.ForceLogout()
		}
	})

	timer.Start()
	clock.Advance(2 * time.Second)
	assert.Equal(t, PhaseLoggedOut, timer.State().Phase)
	assert.Equal(t, 1, signOut.count())
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "STOPPED", PhaseStopped.String())
	assert.Equal(t, "ACTIVE", PhaseActive.String())
	assert.Equal(t, "WARNING", PhaseWarning.String())
	assert.Equal(t, "LOGGED_OUT", PhaseLoggedOut.String())
	assert.Equal(t, "UNKNOWN", Phase(42).String())
}
