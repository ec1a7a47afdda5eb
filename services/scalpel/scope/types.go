// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scope maps a natural-language edit task to a minimal,
// confidence-scored edit scope using the symbol graph.
//
// # Description
//
// Resolution runs a fixed cascade of strategies in strict priority
// order: explicit symbol mention, line-number mention, error/stack
// location, then semantic fuzzy match. The first strategy to produce
// at least one primary symbol wins and fixes both the resolution
// method and its confidence. Anything below the confidence floor
// degrades to a whole-file fallback.
package scope

import "github.com/AleutianAI/scalpel/services/scalpel/graph"

// ResolutionMethod identifies which strategy produced an EditScope.
type ResolutionMethod string

const (
	MethodGraphLookup   ResolutionMethod = "graph_lookup"
	MethodLineMention   ResolutionMethod = "line_mention"
	MethodErrorLocation ResolutionMethod = "error_location"
	MethodSemantic      ResolutionMethod = "semantic"
	MethodFallback      ResolutionMethod = "fallback"
)

// FallbackThreshold is the confidence floor: any resolution scoring
// below it is discarded in favor of whole-file editing.
const FallbackThreshold = 0.60

// SymbolKind classifies a SymbolRange.
type SymbolKind string

const (
	SymbolFunction SymbolKind = "function"
	SymbolMethod   SymbolKind = "method"
	SymbolClass    SymbolKind = "class"
	SymbolVariable SymbolKind = "variable"
)

// SymbolRange is one symbol's location within an edit scope.
type SymbolRange struct {
	Name      string     `json:"name"`
	Kind      SymbolKind `json:"kind"`
	FilePath  string     `json:"file_path"`
	LineStart int        `json:"line_start"`
	LineEnd   int        `json:"line_end"`

	// Editable marks primary symbols; context symbols are read-only.
	Editable bool `json:"editable"`

	// ParentClass is set for methods.
	ParentClass string `json:"parent_class,omitempty"`
}

// EditScope is the result of scope resolution.
//
// Invariant: Method == MethodFallback exactly when PrimarySymbols is
// empty, and then Confidence is 0.0 - callers treat the whole file as
// the edit unit.
type EditScope struct {
	// PrimarySymbols are the symbols the edit may change.
	PrimarySymbols []SymbolRange `json:"primary_symbols"`

	// ContextSymbols are read-only neighbors included for context.
	ContextSymbols []SymbolRange `json:"context_symbols"`

	// AffectedFiles lists every file the scope touches; the target
	// file is always first.
	AffectedFiles []string `json:"affected_files"`

	Method     ResolutionMethod `json:"resolution_method"`
	Confidence float64          `json:"confidence"`
}

// IsFallback reports whether resolution degraded to whole-file editing.
func (s *EditScope) IsFallback() bool {
	return s.Method == MethodFallback
}

// Strategy is one resolution heuristic in the cascade.
//
// Attempt returns the matched symbols and the strategy's confidence;
// ok is false when the strategy found nothing and the cascade should
// move on.
type Strategy interface {
	Method() ResolutionMethod
	Attempt(task, targetFile string, g *graph.Graph) (symbols []SymbolRange, confidence float64, ok bool)
}

// symbolRange converts a graph summary into a SymbolRange, skipping
// file and module nodes. ok is false for skipped kinds.
func symbolRange(s graph.SymbolSummary, editable bool) (SymbolRange, bool) {
	var kind SymbolKind
	switch graph.NodeKind(s.Kind) {
	case graph.KindClass:
		kind = SymbolClass
	case graph.KindFunction:
		if s.ParentClass != "" {
			kind = SymbolMethod
		} else {
			kind = SymbolFunction
		}
	case graph.KindVariable:
		kind = SymbolVariable
	default:
		return SymbolRange{}, false
	}
	return SymbolRange{
		Name:        s.Name,
		Kind:        kind,
		FilePath:    s.FilePath,
		LineStart:   s.LineStart,
		LineEnd:     s.LineEnd,
		Editable:    editable,
		ParentClass: s.ParentClass,
	}, true
}
