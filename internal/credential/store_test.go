// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credential

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingSlot rejects every write so persistence errors can be observed.
type failingSlot struct{ MemorySlot }

func (f *failingSlot) Write(string) error { return errors.New("disk full") }

// gatedSlot parks the first Write until release is closed.
type gatedSlot struct {
	MemorySlot
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedSlot() *gatedSlot {
	return &gatedSlot{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedSlot) Write(token string) error {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return g.MemorySlot.Write(token)
}

func makeJWT(t *testing.T, c map[string]any) string {
	t.Helper()
	payload, err := json.Marshal(c)
	require.NoError(t, err)
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".signature"
}

func TestStore_SetGetClear(t *testing.T) {
	store := NewStore(nil)

	_, ok := store.Get()
	assert.False(t, ok, "new store should be empty")

	require.NoError(t, store.Set("token-1"))
	token, ok := store.Get()
	assert.True(t, ok)
	assert.Equal(t, "token-1", token)

	require.NoError(t, store.Set("token-2"))
	token, _ = store.Get()
	assert.Equal(t, "token-2", token, "Set should replace the current credential")

	require.NoError(t, store.Clear())
	_, ok = store.Get()
	assert.False(t, ok, "Clear should leave the store empty")
}

func TestStore_SetEmptyClears(t *testing.T) {
	store := NewStore(nil)
	require.NoError(t, store.Set("token"))
	require.NoError(t, store.Set(""))

	_, ok := store.Get()
	assert.False(t, ok)
}

func TestStore_MirrorsIntoSlot(t *testing.T) {
	slot := NewMemorySlot()
	store := NewStore(slot)

	require.NoError(t, store.Set("persisted"))
	got, err := slot.Read()
	require.NoError(t, err)
	assert.Equal(t, "persisted", got)

	require.NoError(t, store.Clear())
	_, err = slot.Read()
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestStore_LoadReadsSlotOnce(t *testing.T) {
	slot := NewMemorySlot()
	require.NoError(t, slot.Write("from-last-run"))

	store := NewStore(slot)
	require.NoError(t, store.Load())

	token, ok := store.Get()
	assert.True(t, ok)
	assert.Equal(t, "from-last-run", token)
}

func TestStore_LoadEmptySlot(t *testing.T) {
	store := NewStore(NewFileSlot(filepath.Join(t.TempDir(), "missing")))
	require.NoError(t, store.Load())

	_, ok := store.Get()
	assert.False(t, ok)
}

func TestStore_PersistFailureStillReplacesValue(t *testing.T) {
	store := NewStore(&failingSlot{})

	err := store.Set("in-memory")
	require.Error(t, err)

	token, ok := store.Get()
	assert.True(t, ok)
	assert.Equal(t, "in-memory", token, "next request must see the new credential")
}

func TestStore_Subscribe(t *testing.T) {
	store := NewStore(nil)

	var changes []Change
	unsubscribe := store.Subscribe(func(c Change) {
		changes = append(changes, c)
	})

	require.NoError(t, store.Set("a"))
	require.NoError(t, store.Set("a")) // unchanged, no event
	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear()) // already empty, no event

	require.Len(t, changes, 2)
	assert.Equal(t, Change{Token: "a", Present: true}, changes[0])
	assert.Equal(t, Change{}, changes[1])

	unsubscribe()
	unsubscribe()
	require.NoError(t, store.Set("b"))
	assert.Len(t, changes, 2, "no events after unsubscribe")
}

func TestStore_SubscriberMayReadStore(t *testing.T) {
	store := NewStore(nil)

	var seen string
	store.Subscribe(func(Change) {
		seen, _ = store.Get()
	})

	require.NoError(t, store.Set("rotated"))
	assert.Equal(t, "rotated", seen)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := NewStore(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.Set("token")
		}()
		go func() {
			defer wg.Done()
			store.Get()
		}()
	}
	wg.Wait()
}

func TestStore_ClearDuringSlotWriteStaysCleared(t *testing.T) {
	slot := newGatedSlot()
	store := NewStore(slot)

	setDone := make(chan error, 1)
	go func() { setDone <- store.Set("rotated") }()
	<-slot.entered

	token, ok := store.Get()
	require.True(t, ok, "reads see the new value while the write is in flight")
	assert.Equal(t, "rotated", token)

	clearDone := make(chan error, 1)
	go func() { clearDone <- store.Clear() }()

	select {
	case <-clearDone:
		t.Fatal("Clear must wait for the in-flight slot write")
	case <-time.After(50 * time.Millisecond):
	}

	close(slot.release)
	require.NoError(t, <-setDone)
	require.NoError(t, <-clearDone)

	_, ok = store.Get()
	assert.False(t, ok)
	_, err := slot.Read()
	assert.ErrorIs(t, err, ErrNoCredential, "slot must not keep the superseded token")

	restarted := NewStore(slot)
	require.NoError(t, restarted.Load())
	_, ok = restarted.Get()
	assert.False(t, ok, "cleared credential must not return on the next start")
}

func TestStore_SyncFromSlotWaitsForWrite(t *testing.T) {
	slot := newGatedSlot()
	require.NoError(t, slot.MemorySlot.Write("stale"))
	store := NewStore(slot)
	require.NoError(t, store.Load())

	setDone := make(chan error, 1)
	go func() { setDone <- store.Set("fresh") }()
	<-slot.entered

	syncDone := make(chan struct{})
	go func() {
		store.syncFromSlot()
		close(syncDone)
	}()

	close(slot.release)
	require.NoError(t, <-setDone)
	<-syncDone

	token, _ := store.Get()
	assert.Equal(t, "fresh", token, "a slot read must not revert a newer write")
}

func TestStore_ConcurrentSetClearMatchesSlot(t *testing.T) {
	slot := NewMemorySlot()
	store := NewStore(slot)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.Set("token")
		}()
		go func() {
			defer wg.Done()
			_ = store.Clear()
		}()
	}
	wg.Wait()

	inMemory, _ := store.Get()
	persisted, err := slot.Read()
	if err != nil {
		persisted = ""
	}
	assert.Equal(t, inMemory, persisted)
}

func TestStore_Expiry(t *testing.T) {
	store := NewStore(nil)
	_, ok := store.Expiry()
	assert.False(t, ok)

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, store.Set(makeJWT(t, map[string]any{"sub": "u1", "exp": exp.Unix()})))

	got, ok := store.Expiry()
	require.True(t, ok)
	assert.True(t, exp.Equal(got))
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, "none", Fingerprint(""))
	fp := Fingerprint("secret-token")
	assert.Len(t, fp, 8)
	assert.NotContains(t, fp, "secret")
	assert.Equal(t, fp, Fingerprint("secret-token"))
}
