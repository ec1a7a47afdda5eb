// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/scalpel/pkg/logging"
	"github.com/AleutianAI/scalpel/services/scalpel/extract"
	"github.com/AleutianAI/scalpel/services/scalpel/graph"
)

func quiet() *logging.Logger {
	return logging.New(logging.Config{Quiet: true})
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0640))
	}
}

func newTestIndexer(t *testing.T, root string) *Indexer {
	t.Helper()
	g := graph.New(graph.WithLogger(quiet()))
	return NewIndexer(root, extract.NewRegistry(), g, WithLogger(quiet()), WithWorkers(2))
}

func TestIndexProject(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"pkg/__init__.py": "",
		"pkg/core.py":     "def core_fn():\n    return 1\n",
		"pkg/api.py":      "from pkg import core\n\ndef api_fn():\n    return core.core_fn()\n",
		"README.md":       "not source",
		".git/config":     "ignored",
		"venv/lib.py":     "def should_not_appear():\n    pass\n",
	})

	ix := newTestIndexer(t, root)
	result, err := ix.IndexProject(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.FilesIndexed)
	assert.Zero(t, result.FilesFailed)

	g := ix.Graph()
	assert.NotEmpty(t, g.FindSymbol("core_fn", graph.KindFunction))
	assert.NotEmpty(t, g.FindSymbol("api_fn", graph.KindFunction))
	assert.Empty(t, g.FindSymbol("should_not_appear"), "skipped dirs are not indexed")

	// Import edge resolved: api.py depends on core.py.
	assert.Equal(t, []string{"pkg/api.py"}, g.ImpactAnalysis("pkg/core.py"))
}

func TestIndexProjectMixedLanguages(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"svc/handler.go": "package svc\n\nfunc Handle() {}\n",
		"tools/run.py":   "def run():\n    pass\n",
	})

	ix := newTestIndexer(t, root)
	result, err := ix.IndexProject(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.FilesIndexed)
	assert.NotEmpty(t, ix.Graph().FindSymbol("Handle", graph.KindFunction))
	assert.NotEmpty(t, ix.Graph().FindSymbol("run", graph.KindFunction))
}

func TestIndexFileRefresh(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"mod.py": "def old_name():\n    pass\n",
	})

	ix := newTestIndexer(t, root)
	_, err := ix.IndexProject(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, ix.Graph().FindSymbol("old_name"))

	writeTree(t, root, map[string]string{
		"mod.py": "def new_name():\n    pass\n",
	})
	require.NoError(t, ix.IndexFile(context.Background(), "mod.py"))

	assert.Empty(t, ix.Graph().FindSymbol("old_name"), "stale nodes removed on refresh")
	assert.NotEmpty(t, ix.Graph().FindSymbol("new_name"))
}

func TestModuleName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"pkg/core.py", "pkg.core"},
		{"pkg/__init__.py", "pkg"},
		{"top.py", "top"},
		{"svc/handler.go", "svc/handler"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, moduleName(tt.path))
	}
}

func TestSupported(t *testing.T) {
	ix := newTestIndexer(t, t.TempDir())
	assert.True(t, ix.Supported("a.py"))
	assert.True(t, ix.Supported("b.go"))
	assert.False(t, ix.Supported("c.md"))
}

func TestWatcherFlush(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"watched.py": "def before():\n    pass\n",
		"doomed.py":  "def doomed():\n    pass\n",
	})

	ix := newTestIndexer(t, root)
	_, err := ix.IndexProject(context.Background())
	require.NoError(t, err)

	w := NewWatcher(ix, WithWatcherLogger(quiet()))

	// A changed file is re-extracted, a deleted file is dropped.
	writeTree(t, root, map[string]string{
		"watched.py": "def after():\n    pass\n",
	})
	require.NoError(t, os.Remove(filepath.Join(root, "doomed.py")))

	w.pending["watched.py"] = struct{}{}
	w.pending["doomed.py"] = struct{}{}
	w.flush(context.Background())

	assert.Empty(t, ix.Graph().FindSymbol("before"))
	assert.NotEmpty(t, ix.Graph().FindSymbol("after"))
	assert.Empty(t, ix.Graph().FindSymbol("doomed"))
	assert.False(t, w.hasPending())
}

func TestWatcherRun(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"watched.py": "def before():\n    pass\n",
	})

	ix := newTestIndexer(t, root)
	_, err := ix.IndexProject(context.Background())
	require.NoError(t, err)

	w := NewWatcher(ix, WithDebounce(50*time.Millisecond), WithWatcherLogger(quiet()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Let the watcher install its watches, then edit the file and
	// leave time for the debounced flush.
	time.Sleep(150 * time.Millisecond)
	writeTree(t, root, map[string]string{
		"watched.py": "def after():\n    pass\n",
	})
	time.Sleep(500 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	// Safe to inspect the graph once Run has returned.
	assert.NotEmpty(t, ix.Graph().FindSymbol("after"))
	assert.Empty(t, ix.Graph().FindSymbol("before"))
}
