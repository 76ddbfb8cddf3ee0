// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credential

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
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
// CHANGE NOTIFICATIONS
// =============================================================================

// Change describes a mutation of the current credential.
type Change struct {
	// Token is the new credential; empty when Present is false.
	Token string

	// Present reports whether a credential is current after the change.
	Present bool

	// External is true when the change was observed in the slot rather than
	// made through this Store (another process signed in or out).
	External bool
}

// =============================================================================
// STORE
// =============================================================================

// Store holds the current bearer credential.
//
// writeMu orders every mutation together with its slot write, so the slot
// always ends up holding the value the last mutation left in memory. mu
// guards the fields and is never held across slot I/O.
type Store struct {
	writeMu sync.Mutex

	mu    sync.Mutex
	token string
	slot  Slot

	subs   map[int]func(Change)
	nextID int
}

// NewStore creates a Store mirrored into slot. A nil slot keeps the
// credential in memory only.
func NewStore(slot Slot) *Store {
	if slot == nil {
		slot = NewMemorySlot()
	}
	return &Store{
		slot: slot,
		subs: make(map[int]func(Change)),
	}
}

// Load reads the persisted slot once, typically at startup, to attempt a
// silent re-authentication. An empty slot is not an error.
func (s *Store) Load() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	token, err := s.slot.Read()
	if errors.Is(err, ErrNoCredential) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load credential: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	logger.Info("credential_loaded", "fingerprint", Fingerprint(token))
	return nil
}

// Get returns the current credential and whether one is present.
func (s *Store) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

// Set replaces the current credential. Requests issued after Set returns use
// the new value; an empty token is equivalent to Clear.
//
// The in-memory value is replaced even if the slot write fails, the returned
// error only reports that persistence was lost.
func (s *Store) Set(token string) error {
	if token == "" {
		return s.Clear()
	}

	s.writeMu.Lock()
	s.mu.Lock()
	if s.token == token {
		s.mu.Unlock()
		s.writeMu.Unlock()
		return nil
	}
	s.token = token
	subs := s.subscribersLocked()
	s.mu.Unlock()

	err := s.slot.Write(token)
	s.writeMu.Unlock()
	if err != nil {
		logger.Warn("credential_persist_failed", "error", err)
		err = fmt.Errorf("failed to persist credential: %w", err)
	}

	notify(subs, Change{Token: token, Present: true})
	return err
}

// Clear removes the current credential from memory and from the slot.
func (s *Store) Clear() error {
	s.writeMu.Lock()
	s.mu.Lock()
	had := s.token != ""
	s.token = ""
	subs := s.subscribersLocked()
	s.mu.Unlock()

	err := s.slot.Remove()
	s.writeMu.Unlock()
	if err != nil && !errors.Is(err, ErrNoCredential) {
		logger.Warn("credential_remove_failed", "error", err)
		err = fmt.Errorf("failed to remove persisted credential: %w", err)
	} else {
		err = nil
	}

	if had {
		notify(subs, Change{})
	}
	return err
}

// Subscribe registers fn for every change. The returned function removes the
// subscription and is safe to call more than once.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Expiry returns the expiry decoded from the current credential, if it is a
// JWT carrying an exp claim.
func (s *Store) Expiry() (time.Time, bool) {
	token, ok := s.Get()
	if !ok {
		return time.Time{}, false
	}
	return ParseExpiry(token)
}

// syncFromSlot re-reads the slot and adopts its value without writing it
// back. The read runs under writeMu so it cannot observe a write that a later
// Set or Clear has already superseded.
func (s *Store) syncFromSlot() {
	s.writeMu.Lock()
	token, err := s.slot.Read()
	if errors.Is(err, ErrNoCredential) {
		token, err = "", nil
	}
	if err != nil {
		s.writeMu.Unlock()
		logger.Warn("credential_watch_read_failed", "error", err)
		return
	}

	s.mu.Lock()
	if s.token == token {
		s.mu.Unlock()
		s.writeMu.Unlock()
		return
	}
	s.token = token
	subs := s.subscribersLocked()
	s.mu.Unlock()
	s.writeMu.Unlock()

	logger.Info("credential_changed_externally", "present", token != "")
	notify(subs, Change{Token: token, Present: token != "", External: true})
}

func (s *Store) subscribersLocked() []func(Change) {
	subs := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func(Change), c Change) {
	for _, fn := range subs {
		fn(c)
	}
}

// Fingerprint returns a short SHA-256 fingerprint of token for logging.
// The credential itself is never logged.
func Fingerprint(token string) string {
	if token == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:4])
}
