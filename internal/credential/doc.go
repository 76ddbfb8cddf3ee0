// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package credential owns the single bearer credential of a clientdesk session.
//
// The Store is the only shared mutable resource of the session layer. It is
// mutated by sign-in/sign-out and by the request pipeline (rotation, 401 clear),
// and read by every outgoing request. Each mutation is mirrored into a Slot so
// the credential survives a restart.
//
// # Key Types
//
//   - Store: get/set/clear with change subscriptions
//   - Slot: persisted single-value backend (FileSlot, SQLiteSlot, MemorySlot)
//   - Watcher: reflects changes made to a FileSlot by other processes
//
// # Usage
//
//	store := credential.NewStore(credential.NewFileSlot(path))
//	if err := store.Load(); err != nil {
//	    log.Fatal(err)
//	}
//	unsubscribe := store.Subscribe(func(c credential.Change) {
//	    if !c.Present {
//	        // signed out elsewhere
//	    }
//	})
//	defer unsubscribe()
package credential
