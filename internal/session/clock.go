// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"
	"time"
)

// Handle is a scheduled callback that can be cancelled.
// *time.Timer satisfies it.
type Handle interface {
	Stop() bool
}

// Clock schedules the Timer's callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Handle
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, fn func()) Handle {
	return time.AfterFunc(d, fn)
}

// RealClock returns the wall clock built on time.AfterFunc.
func RealClock() Clock {
	return realClock{}
}

// =============================================================================
// MANUAL CLOCK
// =============================================================================

// ManualClock is a Clock that only moves when Advance is called.
// Callbacks run synchronously on the goroutine calling Advance, in deadline
// order, so tests observe every transition deterministically.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
	seq    int
}

type manualTimer struct {
	clock *ManualClock
	at    time.Time
	seq   int
	fn    func()
}

// NewManualClock creates a ManualClock reading start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the clock's current reading.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules fn to run once the clock has advanced by d.
func (c *ManualClock) AfterFunc(d time.Duration, fn func()) Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &manualTimer{clock: c, at: c.now.Add(d), seq: c.seq, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// Stop cancels the timer. It reports false if the timer already fired or
// was already stopped.
func (t *manualTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, pending := range c.timers {
		if pending == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	return false
}

// Advance moves the clock forward by d, firing every callback that becomes
// due, including callbacks scheduled by callbacks fired along the way.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := -1
		for i, t := range c.timers {
			if t.at.After(target) {
				continue
			}
			if next == -1 || t.at.Before(c.timers[next].at) ||
				(t.at.Equal(c.timers[next].at) && t.seq < c.timers[next].seq) {
				next = i
			}
		}
		if next == -1 {
			c.now = target
			c.mu.Unlock()
			return
		}

		t := c.timers[next]
		c.timers = append(c.timers[:next], c.timers[next+1:]...)
		c.now = t.at
		c.mu.Unlock()

		t.fn()
	}
}

// Pending returns the number of scheduled, unfired callbacks.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}
