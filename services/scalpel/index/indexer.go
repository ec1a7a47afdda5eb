// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package index walks a project tree, extracts source files in
// parallel, and feeds the symbol graph.
package index

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/scalpel/pkg/logging"
	"github.com/AleutianAI/scalpel/services/scalpel/extract"
	"github.com/AleutianAI/scalpel/services/scalpel/graph"
)

// StateDirName is the per-project state directory (graph artifact,
// metrics log). It is always excluded from indexing.
const StateDirName = ".scalpel"

// DefaultWorkers bounds concurrent extraction goroutines.
const DefaultWorkers = 8

// skipDirs are directory names never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".idea":        true,
	".vscode":      true,
	"node_modules": true,
	"__pycache__":  true,
	"venv":         true,
	".venv":        true,
	"vendor":       true,
	StateDirName:   true,
}

// Indexer builds and refreshes the symbol graph for one project root.
//
// Extraction runs in parallel; graph ingestion is serialized because
// the graph has no internal locking.
type Indexer struct {
	root     string
	registry *extract.Registry
	graph    *graph.Graph
	workers  int
	log      *logging.Logger
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithWorkers bounds concurrent extractions.
func WithWorkers(n int) Option {
	return func(ix *Indexer) {
		if n > 0 {
			ix.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(ix *Indexer) { ix.log = l }
}

// NewIndexer creates an indexer for the project at root.
func NewIndexer(root string, registry *extract.Registry, g *graph.Graph, opts ...Option) *Indexer {
	ix := &Indexer{
		root:     root,
		registry: registry,
		graph:    g,
		workers:  DefaultWorkers,
		log:      logging.Default(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Graph returns the graph the indexer feeds.
func (ix *Indexer) Graph() *graph.Graph { return ix.graph }

// Root returns the project root.
func (ix *Indexer) Root() string { return ix.root }

// Result summarizes one full project index.
type Result struct {
	FilesIndexed int
	FilesFailed  int
	Duration     time.Duration
}

// IndexProject walks the tree, extracts every supported file, ingests
// the results in path order, and resolves import edges.
func (ix *Indexer) IndexProject(ctx context.Context) (*Result, error) {
	start := time.Now()

	paths, err := ix.collectFiles()
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", ix.root, err)
	}

	var mu sync.Mutex
	extractions := make([]*extract.FileExtraction, 0, len(paths))
	failed := 0

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(ix.workers)
	for _, relPath := range paths {
		eg.Go(func() error {
			ext, err := ix.extractOne(egCtx, relPath)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				ix.log.Warn("extraction failed", "path", relPath, "error", err)
				return nil
			}
			extractions = append(extractions, ext)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	// Deterministic ingestion order regardless of goroutine timing.
	sort.Slice(extractions, func(i, j int) bool {
		return extractions[i].Path < extractions[j].Path
	})
	for _, ext := range extractions {
		ix.graph.AddFileExtraction(ext)
	}

	ix.graph.ResolveImportEdges(ix.moduleMap(extractions))

	result := &Result{
		FilesIndexed: len(extractions),
		FilesFailed:  failed,
		Duration:     time.Since(start),
	}
	ix.log.Info("project indexed",
		"root", ix.root,
		"files", result.FilesIndexed,
		"failed", result.FilesFailed,
		"duration", result.Duration)
	return result, nil
}

// IndexFile re-extracts one file and replaces its graph nodes. Used by
// the watcher on change events.
func (ix *Indexer) IndexFile(ctx context.Context, relPath string) error {
	ext, err := ix.extractOne(ctx, relPath)
	if err != nil {
		return err
	}
	ix.graph.RemoveFile(relPath)
	ix.graph.AddFileExtraction(ext)
	ix.graph.ResolveImportEdges(map[string]string{
		moduleName(relPath): relPath,
	})
	return nil
}

// Supported reports whether relPath has a registered extractor.
func (ix *Indexer) Supported(relPath string) bool {
	_, ok := ix.registry.ForFile(relPath)
	return ok
}

// collectFiles walks the root gathering supported files as
// slash-separated paths relative to root.
func (ix *Indexer) collectFiles() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(ix.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != ix.root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := ix.registry.ForFile(path); !ok {
			return nil
		}
		rel, err := filepath.Rel(ix.root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	return paths, err
}

func (ix *Indexer) extractOne(ctx context.Context, relPath string) (*extract.FileExtraction, error) {
	extractor, ok := ix.registry.ForFile(relPath)
	if !ok {
		return nil, fmt.Errorf("%w: %s", extract.ErrUnsupportedLanguage, relPath)
	}
	content, err := os.ReadFile(filepath.Join(ix.root, filepath.FromSlash(relPath)))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", relPath, err)
	}
	return extractor.Extract(ctx, content, relPath)
}

// moduleMap maps importable module names to file paths for import-edge
// resolution.
func (ix *Indexer) moduleMap(extractions []*extract.FileExtraction) map[string]string {
	m := make(map[string]string, len(extractions))
	for _, ext := range extractions {
		m[moduleName(ext.Path)] = ext.Path
	}
	return m
}

// moduleName derives the importable name for a file path: Python files
// get dotted module names ("pkg/mod.py" -> "pkg.mod", with package
// __init__.py collapsing to the package itself); everything else keeps
// its extension-less path.
func moduleName(relPath string) string {
	ext := filepath.Ext(relPath)
	base := strings.TrimSuffix(relPath, ext)
	if ext == ".py" {
		base = strings.TrimSuffix(base, "/__init__")
		return strings.ReplaceAll(base, "/", ".")
	}
	return base
}
