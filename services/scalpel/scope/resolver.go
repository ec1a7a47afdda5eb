// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scope

import (
	"strings"

	"github.com/AleutianAI/scalpel/pkg/logging"
	"github.com/AleutianAI/scalpel/services/scalpel/graph"
)

// multiFileCues are task words hinting the edit spans multiple files.
var multiFileCues = []string{
	"all", "every", "everywhere", "throughout", "across", "rename", "global",
}

// Resolver maps task descriptions to edit scopes against one graph.
type Resolver struct {
	graph      *graph.Graph
	strategies []Strategy
	log        *logging.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

// WithStrategies overrides the strategy cascade, mainly for tests.
// Order is priority order.
func WithStrategies(strategies ...Strategy) Option {
	return func(r *Resolver) { r.strategies = strategies }
}

// NewResolver creates a resolver with the standard strategy cascade.
func NewResolver(g *graph.Graph, opts ...Option) *Resolver {
	r := &Resolver{
		graph: g,
		strategies: []Strategy{
			explicitMention{},
			lineMention{},
			errorLocation{},
			semanticMatch{},
		},
		log: logging.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve maps a task description and target file to an EditScope.
//
// # Description
//
// Strategies run in priority order; the first to yield at least one
// primary symbol fixes the method and confidence. A result below the
// confidence floor, or no result at all, degrades to the fallback
// scope: no primaries, confidence 0, whole file editable.
//
// After a successful resolution two enrichment passes run: multi-file
// expansion (task cues like "everywhere" pull in same-named symbols
// from files that import the target) and 1-hop context gathering
// (graph neighbors of each primary, added read-only).
func (r *Resolver) Resolve(task, targetFile string) EditScope {
	var chosen Strategy
	var symbols []SymbolRange
	confidence := 0.0

	for _, strat := range r.strategies {
		s, conf, ok := strat.Attempt(task, targetFile, r.graph)
		if !ok {
			continue
		}
		chosen, symbols, confidence = strat, s, conf
		break
	}

	if chosen == nil || len(symbols) == 0 || confidence < FallbackThreshold {
		r.log.Debug("scope resolution fell back to whole file",
			"file", targetFile, "confidence", confidence)
		return EditScope{
			AffectedFiles: []string{targetFile},
			Method:        MethodFallback,
			Confidence:    0.0,
		}
	}

	scope := EditScope{
		PrimarySymbols: symbols,
		AffectedFiles:  affectedFiles(targetFile, symbols),
		Method:         chosen.Method(),
		Confidence:     confidence,
	}

	r.expandMultiFile(task, targetFile, &scope)
	r.gatherContext(&scope)

	r.log.Debug("scope resolved",
		"file", targetFile,
		"method", scope.Method,
		"confidence", scope.Confidence,
		"primaries", len(scope.PrimarySymbols),
		"context", len(scope.ContextSymbols))
	return scope
}

// expandMultiFile widens the scope when the task signals a cross-file
// edit: symbols in impacted files sharing a primary's name become
// editable primaries too.
func (r *Resolver) expandMultiFile(task, targetFile string, scope *EditScope) {
	if !containsCue(task) {
		return
	}

	primaryNames := map[string]bool{}
	for _, p := range scope.PrimarySymbols {
		primaryNames[p.Name] = true
	}

	existing := rangeSet(scope.PrimarySymbols)
	for _, file := range r.graph.ImpactAnalysis(targetFile) {
		matched := false
		for _, s := range r.graph.FileSymbols(file) {
			if !primaryNames[s.Name] {
				continue
			}
			sr, ok := symbolRange(s, true)
			if !ok || existing[rangeKeyOf(sr)] {
				continue
			}
			existing[rangeKeyOf(sr)] = true
			scope.PrimarySymbols = append(scope.PrimarySymbols, sr)
			matched = true
		}
		if matched {
			scope.AffectedFiles = appendUnique(scope.AffectedFiles, file)
		}
	}
}

// gatherContext adds 1-hop graph neighbors of each primary as
// read-only context, restricted to files already in scope.
func (r *Resolver) gatherContext(scope *EditScope) {
	inScope := map[string]bool{}
	for _, f := range scope.AffectedFiles {
		inScope[f] = true
	}

	taken := rangeSet(scope.PrimarySymbols)
	for _, primary := range scope.PrimarySymbols {
		for _, s := range r.graph.RelatedSymbols(primary.Name, 1) {
			if !inScope[s.FilePath] {
				continue
			}
			sr, ok := symbolRange(s, false)
			if !ok || taken[rangeKeyOf(sr)] {
				continue
			}
			taken[rangeKeyOf(sr)] = true
			scope.ContextSymbols = append(scope.ContextSymbols, sr)
		}
	}
}

// =============================================================================
// Helpers
// =============================================================================

func containsCue(task string) bool {
	lower := strings.ToLower(task)
	for _, cue := range multiFileCues {
		if mentionsWord(lower, cue) {
			return true
		}
	}
	return false
}

// affectedFiles lists the target first, then the other files primaries
// live in, in first-seen order.
func affectedFiles(targetFile string, symbols []SymbolRange) []string {
	files := []string{targetFile}
	for _, s := range symbols {
		if s.FilePath != "" {
			files = appendUnique(files, s.FilePath)
		}
	}
	return files
}

func appendUnique(files []string, file string) []string {
	for _, f := range files {
		if f == file {
			return files
		}
	}
	return append(files, file)
}

type rangeKey struct {
	file, name string
	line       int
}

func rangeKeyOf(s SymbolRange) rangeKey {
	return rangeKey{s.FilePath, s.Name, s.LineStart}
}

func rangeSet(symbols []SymbolRange) map[rangeKey]bool {
	set := map[rangeKey]bool{}
	for _, s := range symbols {
		set[rangeKeyOf(s)] = true
	}
	return set
}
