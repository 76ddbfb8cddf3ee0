// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// =============================================================================
// ACTIVITY SIGNALS
// =============================================================================

// Signal names one kind of user interaction.
type Signal string

const (
	SignalPointerDown Signal = "pointerdown"
	SignalPointerMove Signal = "pointermove"
	SignalKeyPress    Signal = "keypress"
	SignalScroll      Signal = "scroll"
	SignalTouchStart  Signal = "touchstart"
	SignalClick       Signal = "click"
)

var knownSignals = []Signal{
	SignalPointerDown,
	SignalPointerMove,
	SignalKeyPress,
	SignalScroll,
	SignalTouchStart,
	SignalClick,
}

// SignalSet is a set of activity signals.
type SignalSet map[Signal]struct{}

// NewSignalSet builds a set from signals.
func NewSignalSet(signals ...Signal) SignalSet {
	set := make(SignalSet, len(signals))
	for _, s := range signals {
		set[s] = struct{}{}
	}
	return set
}

// AllSignals returns the default set: every known signal.
func AllSignals() SignalSet {
	return NewSignalSet(knownSignals...)
}

// ParseSignals converts configuration names into a SignalSet.
// Names are case-insensitive; unknown names are an error.
func ParseSignals(names []string) (SignalSet, error) {
	set := make(SignalSet, len(names))
	for _, name := range names {
		sig := Signal(strings.ToLower(strings.TrimSpace(name)))
		if !sig.Known() {
			return nil, fmt.Errorf("%w: unknown activity signal %q", ErrInvalidConfig, name)
		}
		set[sig] = struct{}{}
	}
	return set, nil
}

// Known reports whether s is one of the recognised signal names.
func (s Signal) Known() bool {
	for _, k := range knownSignals {
		if s == k {
			return true
		}
	}
	return false
}

// Has reports whether sig is in the set.
func (s SignalSet) Has(sig Signal) bool {
	_, ok := s[sig]
	return ok
}

// Slice returns the signals in sorted order.
func (s SignalSet) Slice() []Signal {
	out := make([]Signal, 0, len(s))
	for sig := range s {
		out = append(out, sig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s SignalSet) clone() SignalSet {
	out := make(SignalSet, len(s))
	for sig := range s {
		out[sig] = struct{}{}
	}
	return out
}

// =============================================================================
// TIMER CONFIGURATION
// =============================================================================

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid session configuration")

const (
	// DefaultIdleTimeout is how long without activity before the warning.
	DefaultIdleTimeout = 30 * time.Minute

	// DefaultCountdownSeconds is the grace period shown in the warning.
	DefaultCountdownSeconds = 60
)

// Config is the immutable configuration of one Timer.
type Config struct {
	// IdleTimeout is the inactivity period before the warning is shown.
	IdleTimeout time.Duration

	// CountdownSeconds is the length of the warning countdown.
	CountdownSeconds int

	// Signals are the interactions that count as activity.
	Signals SignalSet

	// Enabled turns inactivity detection on. A disabled Timer never arms.
	Enabled bool
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:      DefaultIdleTimeout,
		CountdownSeconds: DefaultCountdownSeconds,
		Signals:          AllSignals(),
		Enabled:          true,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("%w: idle timeout must be positive, got %v", ErrInvalidConfig, c.IdleTimeout)
	}
	if c.CountdownSeconds <= 0 {
		return fmt.Errorf("%w: countdown must be positive, got %d", ErrInvalidConfig, c.CountdownSeconds)
	}
	for sig := range c.Signals {
		if !sig.Known() {
			return fmt.Errorf("%w: unknown activity signal %q", ErrInvalidConfig, sig)
		}
	}
	return nil
}
