// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credential

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// SLOT WATCHER
// =============================================================================

// Watcher keeps a Store in sync with a FileSlot that other clientdesk
// processes may write to. A removed file clears the store; a rewritten file
// replaces the credential. Changes this process made itself are no-ops since
// the store already holds the value.
type Watcher struct {
	store   *Store
	slot    *FileSlot
	watcher *fsnotify.Watcher

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Watch starts watching slot on behalf of store.
//
// The parent directory is watched rather than the file so atomic renames and
// a not-yet-created file are both observed.
func Watch(ctx context.Context, store *Store, slot *FileSlot) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := fw.Add(filepath.Dir(slot.Path())); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch credential directory: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		store:   store,
		slot:    slot,
		watcher: fw,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go w.processEvents()
	return w, nil
}

func (w *Watcher) processEvents() {
	defer close(w.done)

	target := filepath.Clean(w.slot.Path())
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.store.syncFromSlot()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("credential_watch_error", "error", err)
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		w.cancel()
		err = w.watcher.Close()
		<-w.done
	})
	return err
}
