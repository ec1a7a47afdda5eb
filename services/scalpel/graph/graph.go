// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"sort"
	"strings"

	"github.com/AleutianAI/scalpel/pkg/logging"
	"github.com/AleutianAI/scalpel/services/scalpel/extract"
)

// Graph is the project symbol graph.
//
// Queries on unknown names return empty results, never an error, and
// mutation merges or no-ops on "already exists" conditions.
type Graph struct {
	store Store
	log   *logging.Logger
}

// Option configures a Graph.
type Option func(*Graph)

// WithStore overrides the backing node/edge container.
func WithStore(s Store) Option {
	return func(g *Graph) { g.store = s }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(g *Graph) { g.log = l }
}

// New creates an empty symbol graph backed by an adjacency-map store.
func New(opts ...Option) *Graph {
	g := &Graph{
		store: NewMapStore(),
		log:   logging.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Store exposes the backing store, mainly for persistence.
func (g *Graph) Store() Store { return g.store }

// =============================================================================
// Ingestion
// =============================================================================

// AddFileExtraction inserts or merges the nodes and edges for one
// file's structural extraction.
//
// # Description
//
// Contains edges form a forest rooted at the file node: the file
// contains its top-level symbols, a class contains its methods and
// class variables (falling back to the file when the class node is
// absent). Inherits and Calls edges resolve targets by bare name,
// first match wins; ambiguous names across files are not
// disambiguated. Imports point at Module placeholder nodes until
// ResolveImportEdges rewires them.
//
// A file whose extraction reports a parse failure and produced no
// symbols at all is skipped entirely.
func (g *Graph) AddFileExtraction(ext *extract.FileExtraction) {
	if ext == nil {
		return
	}
	if ext.ParseError != "" && len(ext.Classes) == 0 && len(ext.Functions) == 0 && len(ext.Variables) == 0 {
		g.log.Warn("skipping unparseable file", "path", ext.Path, "error", ext.ParseError)
		return
	}

	fileID := FileID(ext.Path)
	g.store.UpsertNode(&Node{
		ID:       fileID,
		Kind:     KindFile,
		Name:     ext.Path,
		FilePath: ext.Path,
		File:     &FileAttrs{Language: ext.Language, Hash: ext.Hash},
	})

	for _, cls := range ext.Classes {
		id := ClassID(ext.Path, cls.Name)
		g.store.UpsertNode(&Node{
			ID:        id,
			Kind:      KindClass,
			Name:      cls.Name,
			FilePath:  ext.Path,
			LineStart: cls.LineStart,
			LineEnd:   cls.LineEnd,
			Docstring: cls.Docstring,
			Class:     &ClassAttrs{Bases: cls.Bases},
		})
		g.store.UpsertEdge(fileID, id, EdgeContains)
	}

	for _, fn := range ext.Functions {
		id := FunctionID(ext.Path, fn.Name, fn.ParentClass)
		g.store.UpsertNode(&Node{
			ID:        id,
			Kind:      KindFunction,
			Name:      fn.Name,
			FilePath:  ext.Path,
			LineStart: fn.LineStart,
			LineEnd:   fn.LineEnd,
			Docstring: fn.Docstring,
			Function: &FunctionAttrs{
				Params:      fn.Params,
				ReturnType:  fn.ReturnType,
				ParentClass: fn.ParentClass,
			},
		})

		parent := fileID
		if fn.ParentClass != "" {
			if _, ok := g.store.Node(ClassID(ext.Path, fn.ParentClass)); ok {
				parent = ClassID(ext.Path, fn.ParentClass)
			}
		}
		g.store.UpsertEdge(parent, id, EdgeContains)
	}

	for _, v := range ext.Variables {
		id := VariableID(ext.Path, v.Scope, v.Name)
		g.store.UpsertNode(&Node{
			ID:        id,
			Kind:      KindVariable,
			Name:      v.Name,
			FilePath:  ext.Path,
			LineStart: v.LineStart,
			LineEnd:   v.LineEnd,
			Variable:  &VariableAttrs{Scope: v.Scope, TypeHint: v.TypeHint},
		})

		parent := fileID
		if cls, ok := strings.CutPrefix(v.Scope, "class:"); ok {
			if _, found := g.store.Node(ClassID(ext.Path, cls)); found {
				parent = ClassID(ext.Path, cls)
			}
		}
		g.store.UpsertEdge(parent, id, EdgeContains)
	}

	for _, imp := range ext.Imports {
		modID := ModuleID(imp.ModuleName)
		g.store.UpsertNode(&Node{
			ID:   modID,
			Kind: KindModule,
			Name: imp.ModuleName,
		})
		g.store.UpsertEdge(fileID, modID, EdgeImports)
	}

	g.wireInheritance(ext)
	g.wireCalls(ext)

	g.log.Debug("file ingested",
		"path", ext.Path,
		"classes", len(ext.Classes),
		"functions", len(ext.Functions),
		"variables", len(ext.Variables))
}

// wireInheritance adds Inherits edges by name-matching each base-class
// string against existing class nodes, then derives Overrides edges
// for methods shadowing a same-named ancestor method.
func (g *Graph) wireInheritance(ext *extract.FileExtraction) {
	for _, cls := range ext.Classes {
		classID := ClassID(ext.Path, cls.Name)
		for _, base := range cls.Bases {
			if target, ok := g.findFirstNode(base, KindClass); ok && target.ID != classID {
				g.store.UpsertEdge(classID, target.ID, EdgeInherits)
			}
		}
	}

	for _, fn := range ext.Functions {
		if fn.ParentClass == "" {
			continue
		}
		funcID := FunctionID(ext.Path, fn.Name, fn.ParentClass)
		for _, ancestor := range g.InheritanceChain(fn.ParentClass) {
			overridden := FunctionID(ancestor.FilePath, fn.Name, ancestor.Name)
			if _, ok := g.store.Node(overridden); ok && overridden != funcID {
				g.store.UpsertEdge(funcID, overridden, EdgeOverrides)
				break
			}
		}
	}
}

// wireCalls adds Calls edges, resolving callee names first within the
// same file, then globally by bare name.
func (g *Graph) wireCalls(ext *extract.FileExtraction) {
	for _, call := range ext.Calls {
		caller, ok := g.findFunctionInFile(call.CallerFunction, ext.Path)
		if !ok {
			continue
		}
		callee, ok := g.findFunctionInFile(call.CalleeName, ext.Path)
		if !ok {
			callee, ok = g.findFirstNode(call.CalleeName, KindFunction)
		}
		if !ok || callee.ID == caller.ID {
			continue
		}
		g.store.UpsertEdge(caller.ID, callee.ID, EdgeCalls)
	}
}

// RemoveFile deletes every node owned by path, plus all edges touching
// them. Safe no-op for an unindexed file. Used before re-indexing.
func (g *Graph) RemoveFile(path string) {
	var ids []string
	g.store.EachNode(func(n *Node) bool {
		if n.FilePath == path {
			ids = append(ids, n.ID)
		}
		return true
	})
	for _, id := range ids {
		g.store.RemoveNode(id)
	}
	if len(ids) > 0 {
		g.log.Debug("file removed from graph", "path", path, "nodes", len(ids))
	}
}

// ResolveImportEdges rewires Imports edges pointing at Module
// placeholders to the real File nodes, once every file is known.
//
// moduleMap maps importable module names to indexed file paths.
// Placeholders with no mapping are left in place.
func (g *Graph) ResolveImportEdges(moduleMap map[string]string) {
	var modules []*Node
	g.store.EachNode(func(n *Node) bool {
		if n.Kind == KindModule {
			modules = append(modules, n)
		}
		return true
	})

	resolved := 0
	for _, mod := range modules {
		path, ok := moduleMap[mod.Name]
		if !ok {
			continue
		}
		target, ok := g.store.Node(FileID(path))
		if !ok {
			continue
		}
		for _, e := range g.store.Predecessors(mod.ID) {
			if e.Type == EdgeImports && e.From != target.ID {
				g.store.UpsertEdge(e.From, target.ID, EdgeImports)
			}
		}
		g.store.RemoveNode(mod.ID)
		resolved++
	}

	if resolved > 0 {
		g.log.Debug("import edges resolved", "modules", resolved)
	}
}

// =============================================================================
// Queries
// =============================================================================

// FindCallers returns the functions with a Calls edge into any
// function named name.
func (g *Graph) FindCallers(name string) []SymbolSummary {
	var out []SymbolSummary
	seen := map[string]bool{}
	for _, n := range g.findNodes(name, KindFunction) {
		for _, e := range g.store.Predecessors(n.ID) {
			if e.Type != EdgeCalls || seen[e.From] {
				continue
			}
			if caller, ok := g.store.Node(e.From); ok {
				seen[e.From] = true
				out = append(out, summarize(caller))
			}
		}
	}
	return out
}

// FindCallees returns the functions any function named name calls.
func (g *Graph) FindCallees(name string) []SymbolSummary {
	var out []SymbolSummary
	seen := map[string]bool{}
	for _, n := range g.findNodes(name, KindFunction) {
		for _, e := range g.store.Successors(n.ID) {
			if e.Type != EdgeCalls || seen[e.To] {
				continue
			}
			if callee, ok := g.store.Node(e.To); ok {
				seen[e.To] = true
				out = append(out, summarize(callee))
			}
		}
	}
	return out
}

// FindReferences returns every node reaching a symbol named name via
// an incoming Calls, References, or Imports edge.
func (g *Graph) FindReferences(name string) []SymbolSummary {
	var out []SymbolSummary
	seen := map[string]bool{}
	for _, n := range g.findNodes(name) {
		for _, e := range g.store.Predecessors(n.ID) {
			switch e.Type {
			case EdgeCalls, EdgeReferences, EdgeImports:
			default:
				continue
			}
			if seen[e.From] {
				continue
			}
			if ref, ok := g.store.Node(e.From); ok {
				seen[e.From] = true
				out = append(out, summarize(ref))
			}
		}
	}
	return out
}

// InheritanceChain returns the ancestors of className, nearest first.
// A root class yields an empty chain.
func (g *Graph) InheritanceChain(className string) []SymbolSummary {
	start := g.findNodes(className, KindClass)
	if len(start) == 0 {
		return nil
	}

	var chain []SymbolSummary
	seen := map[string]bool{}
	var frontier []string
	for _, n := range start {
		seen[n.ID] = true
		frontier = append(frontier, n.ID)
	}

	for len(frontier) > 0 {
		var next []string
		for _, id := range frontier {
			for _, e := range g.store.Successors(id) {
				if e.Type != EdgeInherits || seen[e.To] {
					continue
				}
				seen[e.To] = true
				if ancestor, ok := g.store.Node(e.To); ok {
					chain = append(chain, summarize(ancestor))
					next = append(next, e.To)
				}
			}
		}
		frontier = next
	}
	return chain
}

// FileSymbols returns every symbol declared in path, in declaration
// order. The file node itself is excluded.
func (g *Graph) FileSymbols(path string) []SymbolSummary {
	var out []SymbolSummary
	g.store.EachNode(func(n *Node) bool {
		if n.FilePath == path && n.Kind != KindFile {
			out = append(out, summarize(n))
		}
		return true
	})
	return out
}

// FindSymbol returns every node named name, optionally restricted to
// the given kinds.
func (g *Graph) FindSymbol(name string, kinds ...NodeKind) []SymbolSummary {
	var out []SymbolSummary
	for _, n := range g.findNodes(name, kinds...) {
		out = append(out, summarize(n))
	}
	return out
}

// RelatedSymbols returns the function, class, and variable nodes within
// depth undirected hops of any node named name, excluding the starting
// nodes themselves. File and module nodes are traversed but omitted
// from the result.
func (g *Graph) RelatedSymbols(name string, depth int) []SymbolSummary {
	start := g.findNodes(name)
	if len(start) == 0 || depth <= 0 {
		return nil
	}

	seen := map[string]bool{}
	var frontier []string
	for _, n := range start {
		seen[n.ID] = true
		frontier = append(frontier, n.ID)
	}

	var out []SymbolSummary
	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, id := range frontier {
			succ, pred := g.store.Successors(id), g.store.Predecessors(id)
			neighbors := make([]Edge, 0, len(succ)+len(pred))
			neighbors = append(neighbors, succ...)
			neighbors = append(neighbors, pred...)
			for _, e := range neighbors {
				other := e.To
				if other == id {
					other = e.From
				}
				if seen[other] {
					continue
				}
				seen[other] = true
				if n, ok := g.store.Node(other); ok {
					// File and module nodes are traversed but not
					// reported; related means related symbols.
					if n.Kind != KindFile && n.Kind != KindModule {
						out = append(out, summarize(n))
					}
					next = append(next, other)
				}
			}
		}
		frontier = next
	}
	return out
}

// ImpactAnalysis returns every file that directly or transitively
// imports path, sorted. Call ResolveImportEdges first; unresolved
// Module placeholders do not propagate impact.
func (g *Graph) ImpactAnalysis(path string) []string {
	startID := FileID(path)
	if _, ok := g.store.Node(startID); !ok {
		return nil
	}

	seen := map[string]bool{startID: true}
	frontier := []string{startID}
	var impacted []string

	for len(frontier) > 0 {
		var next []string
		for _, id := range frontier {
			for _, e := range g.store.Predecessors(id) {
				if e.Type != EdgeImports || seen[e.From] {
					continue
				}
				seen[e.From] = true
				if n, ok := g.store.Node(e.From); ok && n.Kind == KindFile {
					impacted = append(impacted, n.FilePath)
					next = append(next, e.From)
				}
			}
		}
		frontier = next
	}

	sort.Strings(impacted)
	return impacted
}

// FileNodes returns a summary for every indexed file.
func (g *Graph) FileNodes() []SymbolSummary {
	var out []SymbolSummary
	g.store.EachNode(func(n *Node) bool {
		if n.Kind == KindFile {
			out = append(out, summarize(n))
		}
		return true
	})
	return out
}

// Stats reports node and edge counts by type.
type Stats struct {
	Nodes       int            `json:"nodes"`
	Edges       int            `json:"edges"`
	NodesByKind map[string]int `json:"nodes_by_kind"`
	EdgesByType map[string]int `json:"edges_by_type"`
}

// Stats returns counts by node kind and edge type.
func (g *Graph) Stats() Stats {
	stats := Stats{
		Nodes:       g.store.NodeCount(),
		Edges:       g.store.EdgeCount(),
		NodesByKind: map[string]int{},
		EdgesByType: map[string]int{},
	}
	g.store.EachNode(func(n *Node) bool {
		stats.NodesByKind[string(n.Kind)]++
		for _, e := range g.store.Successors(n.ID) {
			stats.EdgesByType[string(e.Type)]++
		}
		return true
	})
	return stats
}

// =============================================================================
// Internal Lookup
// =============================================================================

// findNodes returns every node named name in insertion order,
// optionally restricted to kinds.
func (g *Graph) findNodes(name string, kinds ...NodeKind) []*Node {
	var out []*Node
	g.store.EachNode(func(n *Node) bool {
		if n.Name != name {
			return true
		}
		if len(kinds) > 0 {
			match := false
			for _, k := range kinds {
				if n.Kind == k {
					match = true
					break
				}
			}
			if !match {
				return true
			}
		}
		out = append(out, n)
		return true
	})
	return out
}

// findFirstNode returns the earliest-inserted node with the given name
// and kind. First match wins; names are not disambiguated by package.
func (g *Graph) findFirstNode(name string, kind NodeKind) (*Node, bool) {
	var found *Node
	g.store.EachNode(func(n *Node) bool {
		if n.Name == name && n.Kind == kind {
			found = n
			return false
		}
		return true
	})
	return found, found != nil
}

// findFunctionInFile returns the first function named name declared in
// path.
func (g *Graph) findFunctionInFile(name, path string) (*Node, bool) {
	var found *Node
	g.store.EachNode(func(n *Node) bool {
		if n.Kind == KindFunction && n.Name == name && n.FilePath == path {
			found = n
			return false
		}
		return true
	})
	return found, found != nil
}
