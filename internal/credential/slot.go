// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credential

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/jeranaias/clientdesk/internal/util"
)

// SlotKey is the well-known key the credential is persisted under.
const SlotKey = "clientdesk.token"

// ErrNoCredential is returned by Slot.Read when nothing is persisted.
var ErrNoCredential = errors.New("no persisted credential")

// Slot persists a single credential string.
type Slot interface {
	Read() (string, error)
	Write(token string) error
	Remove() error
}

// =============================================================================
// MEMORY SLOT
// =============================================================================

// MemorySlot keeps the credential in process memory only.
type MemorySlot struct {
	mu    sync.Mutex
	token string
}

// NewMemorySlot creates an empty MemorySlot.
func NewMemorySlot() *MemorySlot {
	return &MemorySlot{}
}

func (m *MemorySlot) Read() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" {
		return "", ErrNoCredential
	}
	return m.token, nil
}

func (m *MemorySlot) Write(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemorySlot) Remove() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}

// =============================================================================
// FILE SLOT
// =============================================================================

// FileSlot stores the credential in a single owner-only file.
type FileSlot struct {
	path string
}

// NewFileSlot creates a FileSlot at path.
func NewFileSlot(path string) *FileSlot {
	return &FileSlot{path: path}
}

// Path returns the file backing the slot.
func (f *FileSlot) Path() string {
	return f.path
}

func (f *FileSlot) Read() (string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoCredential
	}
	if err != nil {
		return "", fmt.Errorf("failed to read credential file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoCredential
	}
	return token, nil
}

// Write replaces the file atomically with 0600 permissions.
func (f *FileSlot) Write(token string) error {
	return util.AtomicWriteFile(f.path, []byte(token), 0600)
}

func (f *FileSlot) Remove() error {
	err := os.Remove(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
