// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph maintains the project symbol graph.
//
// # Description
//
// The graph is an in-memory directed multigraph over code entities:
// files, modules (unresolved import targets), classes, functions, and
// variables. It is built incrementally from per-file structural
// extractions and supports point queries, traversals, and a binary
// save/restore artifact.
//
// Node identity is derived deterministically from kind, file path, and
// qualified name, so re-adding a file's data merges into the existing
// nodes instead of duplicating them.
//
// # Thread Safety
//
// The graph has no internal locking. One edit task owns one graph
// snapshot; callers sharing a graph across goroutines must serialize
// mutation against queries themselves.
package graph

import (
	"fmt"
	"strings"
)

// NodeKind discriminates the node variants.
type NodeKind string

const (
	KindFile     NodeKind = "file"
	KindModule   NodeKind = "module"
	KindClass    NodeKind = "class"
	KindFunction NodeKind = "function"
	KindVariable NodeKind = "variable"
)

// EdgeType discriminates relationship kinds.
//
// At most one edge of a given type exists between an ordered node
// pair; duplicate insertion is a no-op.
type EdgeType string

const (
	EdgeContains   EdgeType = "contains"
	EdgeCalls      EdgeType = "calls"
	EdgeInherits   EdgeType = "inherits"
	EdgeImports    EdgeType = "imports"
	EdgeReferences EdgeType = "references"
	EdgeOverrides  EdgeType = "overrides"
)

// =============================================================================
// Nodes & Edges
// =============================================================================

// Node is a code entity in the graph.
//
// Exactly one of the kind-specific attribute pointers is set, matching
// Kind. Queries narrow by switching on Kind rather than probing
// optional fields.
type Node struct {
	// ID is the deterministic identity string (see the ID builders).
	ID string

	Kind NodeKind

	// Name is the bare symbol name (or path for files, module name for
	// modules).
	Name string

	// FilePath is the owning file, empty for Module placeholders.
	FilePath string

	// LineStart and LineEnd are the 1-indexed inclusive line range,
	// zero for files and modules.
	LineStart int
	LineEnd   int

	// Docstring is the documentation text, if any.
	Docstring string

	File     *FileAttrs     `json:",omitempty"`
	Function *FunctionAttrs `json:",omitempty"`
	Class    *ClassAttrs    `json:",omitempty"`
	Variable *VariableAttrs `json:",omitempty"`
}

// FileAttrs holds file-specific attributes.
type FileAttrs struct {
	Language string
	Hash     string
}

// FunctionAttrs holds function-specific attributes.
type FunctionAttrs struct {
	Params      []string
	ReturnType  string
	ParentClass string
}

// ClassAttrs holds class-specific attributes.
type ClassAttrs struct {
	// Bases are the base-class names as written in source.
	Bases []string
}

// VariableAttrs holds variable-specific attributes.
type VariableAttrs struct {
	// Scope is "module" or "class:<Name>".
	Scope    string
	TypeHint string
}

// Edge is a directed, typed relationship between two nodes.
type Edge struct {
	From string
	To   string
	Type EdgeType
}

// =============================================================================
// Node Identity
// =============================================================================

// FileID returns the node ID for a source file.
func FileID(path string) string { return "FILE:" + path }

// ModuleID returns the node ID for an unresolved import target.
func ModuleID(name string) string { return "MODULE:" + name }

// ClassID returns the node ID for a class declared in a file.
func ClassID(path, name string) string {
	return fmt.Sprintf("CLASS:%s::%s", path, name)
}

// FunctionID returns the node ID for a function. Methods qualify the
// name with their enclosing class ("Class.method").
func FunctionID(path, name, parentClass string) string {
	if parentClass != "" {
		return fmt.Sprintf("FUNC:%s::%s.%s", path, parentClass, name)
	}
	return fmt.Sprintf("FUNC:%s::%s", path, name)
}

// VariableID returns the node ID for a variable within a scope.
func VariableID(path, scope, name string) string {
	return fmt.Sprintf("VAR:%s::%s::%s", path, scope, name)
}

// =============================================================================
// Query Summaries
// =============================================================================

// SymbolSummary is the caller-facing view of a node returned by every
// query. Summaries are plain data and carry no graph references.
type SymbolSummary struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	FilePath  string `json:"file_path,omitempty"`
	LineStart int    `json:"line_start,omitempty"`
	LineEnd   int    `json:"line_end,omitempty"`
	Docstring string `json:"docstring,omitempty"`

	// ParentClass is set for methods.
	ParentClass string `json:"parent_class,omitempty"`
}

// summarize converts a node into its query summary.
func summarize(n *Node) SymbolSummary {
	s := SymbolSummary{
		ID:        n.ID,
		Kind:      string(n.Kind),
		Name:      n.Name,
		FilePath:  n.FilePath,
		LineStart: n.LineStart,
		LineEnd:   n.LineEnd,
		Docstring: n.Docstring,
	}
	if n.Function != nil {
		s.ParentClass = n.Function.ParentClass
	}
	return s
}

// merge folds the non-zero attributes of src into dst. Identity fields
// (ID, Kind) are never touched; repeated ingestion of the same file
// converges instead of duplicating.
func (dst *Node) merge(src *Node) {
	if src.Name != "" {
		dst.Name = src.Name
	}
	if src.FilePath != "" {
		dst.FilePath = src.FilePath
	}
	if src.LineStart != 0 {
		dst.LineStart = src.LineStart
	}
	if src.LineEnd != 0 {
		dst.LineEnd = src.LineEnd
	}
	if src.Docstring != "" {
		dst.Docstring = src.Docstring
	}
	if src.File != nil {
		dst.File = src.File
	}
	if src.Function != nil {
		dst.Function = src.Function
	}
	if src.Class != nil {
		dst.Class = src.Class
	}
	if src.Variable != nil {
		dst.Variable = src.Variable
	}
}

// SplitIdentifier splits an identifier into lowercase sub-words on
// underscores, hyphens, and camelCase boundaries. Shared with the
// scope resolver's fuzzy matching.
func SplitIdentifier(name string) []string {
	var words []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			words = append(words, strings.ToLower(current.String()))
			current.Reset()
		}
	}

	runes := []rune(name)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == '.':
			flush()
		case i > 0 && isUpper(r) && !isUpper(runes[i-1]):
			flush()
			current.WriteRune(r)
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return words
}

func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
