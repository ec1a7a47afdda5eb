// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/scalpel/pkg/logging"
	"github.com/AleutianAI/scalpel/services/scalpel/extract"
	"github.com/AleutianAI/scalpel/services/scalpel/graph"
)

// fixtureGraph builds two indexed files: app/handlers.py (the usual
// target) and app/routes.py, which imports it and declares a function
// sharing a name with one of its methods.
func fixtureGraph() *graph.Graph {
	g := graph.New(graph.WithLogger(logging.New(logging.Config{Quiet: true})))

	g.AddFileExtraction(&extract.FileExtraction{
		Path:     "app/handlers.py",
		Language: "python",
		Classes: []extract.ClassDecl{
			{Name: "RequestHandler", FilePath: "app/handlers.py", LineStart: 5, LineEnd: 40},
		},
		Functions: []extract.FunctionDecl{
			{Name: "handle_request", FilePath: "app/handlers.py", LineStart: 10, LineEnd: 25,
				ParentClass: "RequestHandler"},
			{Name: "parse_headers", FilePath: "app/handlers.py", LineStart: 45, LineEnd: 60},
		},
		Variables: []extract.VariableDecl{
			{Name: "TIMEOUT", FilePath: "app/handlers.py", LineStart: 2, LineEnd: 2, Scope: "module"},
		},
		Calls: []extract.CallSite{
			{CallerFunction: "handle_request", CalleeName: "parse_headers",
				FilePath: "app/handlers.py", Line: 15},
		},
	})

	g.AddFileExtraction(&extract.FileExtraction{
		Path:     "app/routes.py",
		Language: "python",
		Functions: []extract.FunctionDecl{
			{Name: "handle_request", FilePath: "app/routes.py", LineStart: 5, LineEnd: 15},
			{Name: "dispatch", FilePath: "app/routes.py", LineStart: 20, LineEnd: 30},
		},
		Imports: []extract.ImportDecl{
			{SourceFile: "app/routes.py", ModuleName: "app.handlers"},
		},
		Calls: []extract.CallSite{
			{CallerFunction: "dispatch", CalleeName: "handle_request",
				FilePath: "app/routes.py", Line: 22},
		},
	})

	g.ResolveImportEdges(map[string]string{
		"app.handlers": "app/handlers.py",
		"app.routes":   "app/routes.py",
	})
	return g
}

func newTestResolver(g *graph.Graph, opts ...Option) *Resolver {
	opts = append(opts, WithLogger(logging.New(logging.Config{Quiet: true})))
	return NewResolver(g, opts...)
}

func primaryNames(scope EditScope) []string {
	names := make([]string, len(scope.PrimarySymbols))
	for i, s := range scope.PrimarySymbols {
		names[i] = s.Name
	}
	return names
}

func TestExplicitMention(t *testing.T) {
	r := newTestResolver(fixtureGraph())

	scope := r.Resolve("Fix the bug in parse_headers when headers are empty", "app/handlers.py")

	assert.Equal(t, MethodGraphLookup, scope.Method)
	assert.Equal(t, 0.95, scope.Confidence)
	assert.Equal(t, []string{"parse_headers"}, primaryNames(scope))
	assert.True(t, scope.PrimarySymbols[0].Editable)
	assert.Equal(t, SymbolFunction, scope.PrimarySymbols[0].Kind)
	assert.False(t, scope.IsFallback())
}

func TestExplicitMentionIgnoresCase(t *testing.T) {
	r := newTestResolver(fixtureGraph())

	// Prose rarely preserves identifier casing; "requesthandler" must
	// still hit the RequestHandler class.
	scope := r.Resolve("fix the requesthandler so it retries on timeout", "app/handlers.py")

	assert.Equal(t, MethodGraphLookup, scope.Method)
	assert.Equal(t, 0.95, scope.Confidence)
	assert.Contains(t, primaryNames(scope), "RequestHandler")
}

func TestExplicitBeatsLineMention(t *testing.T) {
	r := newTestResolver(fixtureGraph())

	// Line 12 points at handle_request, but the explicit name wins.
	scope := r.Resolve("Fix parse_headers, the crash is around line 12", "app/handlers.py")

	assert.Equal(t, MethodGraphLookup, scope.Method)
	assert.Equal(t, []string{"parse_headers"}, primaryNames(scope))
}

func TestLineMention(t *testing.T) {
	r := newTestResolver(fixtureGraph())

	t.Run("single line", func(t *testing.T) {
		scope := r.Resolve("The crash happens around line 12", "app/handlers.py")

		assert.Equal(t, MethodLineMention, scope.Method)
		assert.Equal(t, 0.90, scope.Confidence)
		names := primaryNames(scope)
		assert.Contains(t, names, "RequestHandler")
		assert.Contains(t, names, "handle_request")
	})

	t.Run("line range", func(t *testing.T) {
		scope := r.Resolve("Refactor lines 45-60", "app/handlers.py")

		assert.Equal(t, MethodLineMention, scope.Method)
		assert.Equal(t, []string{"parse_headers"}, primaryNames(scope))
	})

	t.Run("symbol strictly inside the range", func(t *testing.T) {
		// Neither endpoint of 42-65 lies inside parse_headers (45-60),
		// but the ranges overlap, so it is still the match.
		scope := r.Resolve("Refactor lines 42-65 for clarity", "app/handlers.py")

		assert.Equal(t, MethodLineMention, scope.Method)
		assert.Equal(t, []string{"parse_headers"}, primaryNames(scope))
	})

	t.Run("method kind reported", func(t *testing.T) {
		scope := r.Resolve("see line 12", "app/handlers.py")
		for _, s := range scope.PrimarySymbols {
			if s.Name == "handle_request" {
				assert.Equal(t, SymbolMethod, s.Kind)
				assert.Equal(t, "RequestHandler", s.ParentClass)
			}
		}
	})
}

func TestErrorLocation(t *testing.T) {
	r := newTestResolver(fixtureGraph())

	t.Run("path:line in target file", func(t *testing.T) {
		scope := r.Resolve(
			"Null deref at app/handlers.py:47 during shutdown",
			"app/handlers.py")

		assert.Equal(t, MethodErrorLocation, scope.Method)
		assert.Equal(t, 0.88, scope.Confidence)
		assert.Equal(t, []string{"parse_headers"}, primaryNames(scope))
	})

	t.Run("cross-file diagnosis via traceback", func(t *testing.T) {
		// Line 47 covers nothing in routes.py, so the line-mention
		// strategy passes and the traceback reference resolves against
		// the file it names.
		scope := r.Resolve(
			`File "app/handlers.py", line 47 raised KeyError`,
			"app/routes.py")

		assert.Equal(t, MethodErrorLocation, scope.Method)
		assert.Equal(t, []string{"parse_headers"}, primaryNames(scope))
		assert.Equal(t, "app/handlers.py", scope.PrimarySymbols[0].FilePath)
		assert.Contains(t, scope.AffectedFiles, "app/routes.py")
		assert.Contains(t, scope.AffectedFiles, "app/handlers.py")
	})
}

func TestSemanticMatch(t *testing.T) {
	r := newTestResolver(fixtureGraph())

	scope := r.Resolve("something is wrong with the header parsing logic", "app/handlers.py")

	assert.Equal(t, MethodSemantic, scope.Method)
	assert.Equal(t, []string{"parse_headers"}, primaryNames(scope))
	// One matched symbol: 0.70 + 0.05
	assert.InDelta(t, 0.75, scope.Confidence, 1e-9)
}

func TestSemanticConfidenceClamp(t *testing.T) {
	symbols := []SymbolRange{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}}

	tests := []struct {
		matched int
		want    float64
	}{
		{1, 0.75},
		{2, 0.80},
		{3, 0.85},
		{4, 0.85}, // clamped
	}
	for _, tt := range tests {
		confidence := 0.70 + 0.05*float64(len(symbols[:tt.matched]))
		if confidence > 0.85 {
			confidence = 0.85
		}
		assert.InDelta(t, tt.want, confidence, 1e-9)
	}
}

func TestFallback(t *testing.T) {
	r := newTestResolver(fixtureGraph())

	t.Run("nothing matches", func(t *testing.T) {
		scope := r.Resolve("improve it somehow", "app/handlers.py")

		assert.Equal(t, MethodFallback, scope.Method)
		assert.Zero(t, scope.Confidence)
		assert.Empty(t, scope.PrimarySymbols)
		assert.Empty(t, scope.ContextSymbols)
		assert.Equal(t, []string{"app/handlers.py"}, scope.AffectedFiles)
		assert.True(t, scope.IsFallback())
	})

	t.Run("low confidence forces fallback", func(t *testing.T) {
		low := stubStrategy{
			method:     MethodSemantic,
			symbols:    []SymbolRange{{Name: "parse_headers", FilePath: "app/handlers.py"}},
			confidence: 0.50,
		}
		r := newTestResolver(fixtureGraph(), WithStrategies(low))

		scope := r.Resolve("anything", "app/handlers.py")

		assert.Equal(t, MethodFallback, scope.Method)
		assert.Zero(t, scope.Confidence)
		assert.Empty(t, scope.PrimarySymbols)
	})
}

type stubStrategy struct {
	method     ResolutionMethod
	symbols    []SymbolRange
	confidence float64
}

func (s stubStrategy) Method() ResolutionMethod { return s.method }

func (s stubStrategy) Attempt(_, _ string, _ *graph.Graph) ([]SymbolRange, float64, bool) {
	return s.symbols, s.confidence, len(s.symbols) > 0
}

func TestMultiFileExpansion(t *testing.T) {
	r := newTestResolver(fixtureGraph())

	scope := r.Resolve("rename handle_request everywhere", "app/handlers.py")

	require.Equal(t, MethodGraphLookup, scope.Method)
	assert.Contains(t, scope.AffectedFiles, "app/routes.py")

	var expanded *SymbolRange
	for i := range scope.PrimarySymbols {
		if scope.PrimarySymbols[i].FilePath == "app/routes.py" {
			expanded = &scope.PrimarySymbols[i]
		}
	}
	require.NotNil(t, expanded, "same-named symbol in the importing file joins the scope")
	assert.Equal(t, "handle_request", expanded.Name)
	assert.True(t, expanded.Editable)
}

func TestContextEnrichment(t *testing.T) {
	r := newTestResolver(fixtureGraph())

	scope := r.Resolve("Fix handle_request return codes", "app/handlers.py")

	require.Equal(t, []string{"handle_request"}, primaryNames(scope))
	require.NotEmpty(t, scope.ContextSymbols)

	contextNames := map[string]bool{}
	for _, s := range scope.ContextSymbols {
		assert.False(t, s.Editable)
		assert.Contains(t, scope.AffectedFiles, s.FilePath)
		contextNames[s.Name] = true
	}
	// The called function and the containing class are one hop away.
	assert.True(t, contextNames["parse_headers"])
	assert.True(t, contextNames["RequestHandler"])
	assert.False(t, contextNames["handle_request"], "primaries are not duplicated as context")
}

func TestSimilarityRatio(t *testing.T) {
	assert.Equal(t, 1.0, similarityRatio("parse", "parse"))
	assert.Equal(t, 0.0, similarityRatio("abc", "xyz"))
	assert.Greater(t, similarityRatio("header", "headers"), 0.80)
	assert.Less(t, similarityRatio("dispatch", "parse"), 0.50)
}

func TestMentionsWord(t *testing.T) {
	assert.True(t, mentionsWord("fix parse_headers now", "parse_headers"))
	assert.False(t, mentionsWord("fix parse_headers_v2 now", "parse_headers"))
	assert.True(t, mentionsWord("parse_headers", "parse_headers"))
	assert.False(t, mentionsWord("nothing here", "parse_headers"))
	assert.True(t, mentionsWord("fix PARSE_HEADERS now", "parse_headers"))
	assert.True(t, mentionsWord("fix the requesthandler", "RequestHandler"))
}
