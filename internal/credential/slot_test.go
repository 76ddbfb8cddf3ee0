// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credential

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSlotContract(t *testing.T, slot Slot) {
	t.Helper()

	_, err := slot.Read()
	assert.ErrorIs(t, err, ErrNoCredential)

	require.NoError(t, slot.Write("first"))
	got, err := slot.Read()
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	require.NoError(t, slot.Write("second"))
	got, err = slot.Read()
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	require.NoError(t, slot.Remove())
	_, err = slot.Read()
	assert.ErrorIs(t, err, ErrNoCredential)

	require.NoError(t, slot.Remove(), "Remove on an empty slot should succeed")
}

func TestMemorySlot(t *testing.T) {
	testSlotContract(t, NewMemorySlot())
}

func TestFileSlot(t *testing.T) {
	testSlotContract(t, NewFileSlot(filepath.Join(t.TempDir(), "nested", "credential")))
}

func TestFileSlot_IgnoresWhitespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential")
	require.NoError(t, os.WriteFile(path, []byte("token\n"), 0600))

	got, err := NewFileSlot(path).Read()
	require.NoError(t, err)
	assert.Equal(t, "token", got)
}

func TestSQLiteSlot(t *testing.T) {
	slot, err := OpenSQLiteSlot(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { slot.Close() })

	testSlotContract(t, slot)
}

func TestSQLiteSlot_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	slot, err := OpenSQLiteSlot(path)
	require.NoError(t, err)
	require.NoError(t, slot.Write("durable"))
	require.NoError(t, slot.Close())

	reopened, err := OpenSQLiteSlot(path)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	got, err := reopened.Read()
	require.NoError(t, err)
	assert.Equal(t, "durable", got)
}

func TestParseExpiry(t *testing.T) {
	exp := time.Now().Add(10 * time.Minute).Unix()

	got, ok := ParseExpiry(makeJWT(t, map[string]any{"exp": exp}))
	require.True(t, ok)
	assert.Equal(t, exp, got.Unix())

	_, ok = ParseExpiry(makeJWT(t, map[string]any{"sub": "no-exp"}))
	assert.False(t, ok, "missing exp")

	_, ok = ParseExpiry("opaque-session-token")
	assert.False(t, ok, "opaque token")

	_, ok = ParseExpiry("a.!!!.c")
	assert.False(t, ok, "bad base64")
}

func TestExpired(t *testing.T) {
	now := time.Now()
	past := makeJWT(t, map[string]any{"exp": now.Add(-time.Minute).Unix()})
	future := makeJWT(t, map[string]any{"exp": now.Add(time.Minute).Unix()})

	assert.True(t, Expired(past, now))
	assert.False(t, Expired(future, now))
	assert.False(t, Expired("opaque", now))
}
