// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/scalpel/pkg/logging"
)

// DefaultDebounce batches rapid save events before re-indexing.
const DefaultDebounce = 500 * time.Millisecond

// Watcher keeps the symbol graph current as files change on disk.
//
// # Description
//
// Filesystem events for supported files are debounced and then
// replayed through the indexer: changed files are re-extracted,
// deleted files are removed from the graph. New directories are added
// to the watch set as they appear.
//
// # Thread Safety
//
// The watcher serializes all graph mutation on its own event
// goroutine; do not mutate the shared graph elsewhere while Run is
// active.
type Watcher struct {
	indexer  *Indexer
	debounce time.Duration
	log      *logging.Logger

	mu      sync.Mutex
	pending map[string]struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce overrides the event batching window.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(l *logging.Logger) WatcherOption {
	return func(w *Watcher) { w.log = l }
}

// NewWatcher creates a watcher driving the given indexer.
func NewWatcher(ix *Indexer, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		indexer:  ix,
		debounce: DefaultDebounce,
		log:      logging.Default(),
		pending:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches the project tree until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.addDirs(fsw, w.indexer.Root()); err != nil {
		return err
	}

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	w.log.Info("watching for changes", "root", w.indexer.Root())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fsw, event)
			if w.hasPending() {
				timer.Reset(w.debounce)
			}

		case <-timer.C:
			w.flush(ctx)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}

// handleEvent queues supported files for re-indexing and extends the
// watch set when directories appear.
func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !skipDirs[filepath.Base(event.Name)] {
				if err := w.addDirs(fsw, event.Name); err != nil {
					w.log.Warn("failed to watch new directory", "path", event.Name, "error", err)
				}
			}
			return
		}
	}

	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	rel, err := filepath.Rel(w.indexer.Root(), event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if !w.indexer.Supported(rel) {
		return
	}

	w.mu.Lock()
	w.pending[rel] = struct{}{}
	w.mu.Unlock()
}

func (w *Watcher) hasPending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending) > 0
}

// flush re-indexes every pending file, removing deleted ones from the
// graph.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	for rel := range batch {
		abs := filepath.Join(w.indexer.Root(), filepath.FromSlash(rel))
		if _, err := os.Stat(abs); os.IsNotExist(err) {
			w.indexer.Graph().RemoveFile(rel)
			w.log.Info("file removed", "path", rel)
			continue
		}
		if err := w.indexer.IndexFile(ctx, rel); err != nil {
			w.log.Warn("re-index failed", "path", rel, "error", err)
			continue
		}
		w.log.Info("file re-indexed", "path", rel)
	}
}

// addDirs registers dir and every non-skipped subdirectory.
func (w *Watcher) addDirs(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && skipDirs[d.Name()] {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}
