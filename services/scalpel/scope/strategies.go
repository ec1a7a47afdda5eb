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
	"regexp"
	"strconv"
	"strings"

	"github.com/AleutianAI/scalpel/services/scalpel/graph"
)

// =============================================================================
// 1. Explicit Mention (confidence 0.95)
// =============================================================================

// explicitMention matches symbol names from the target file against
// the task text on word boundaries.
type explicitMention struct{}

func (explicitMention) Method() ResolutionMethod { return MethodGraphLookup }

func (explicitMention) Attempt(task, targetFile string, g *graph.Graph) ([]SymbolRange, float64, bool) {
	var symbols []SymbolRange
	seen := map[string]bool{}

	add := func(s graph.SymbolSummary) {
		if seen[s.ID] {
			return
		}
		if sr, ok := symbolRange(s, true); ok {
			seen[s.ID] = true
			symbols = append(symbols, sr)
		}
	}

	for _, s := range g.FileSymbols(targetFile) {
		if mentionsWord(task, s.Name) {
			add(s)
		}
	}

	// Graph-wide name search as a second pass, still restricted to the
	// target file, catches symbols whose file-symbol scan was skipped.
	if len(symbols) == 0 {
		for _, word := range extractWords(task, 1) {
			for _, s := range g.FindSymbol(word) {
				if s.FilePath == targetFile {
					add(s)
				}
			}
		}
	}

	if len(symbols) == 0 {
		return nil, 0, false
	}
	return symbols, 0.95, true
}

// =============================================================================
// 2. Line-Number Mention (confidence 0.90)
// =============================================================================

var lineRefPattern = regexp.MustCompile(`(?i)\blines?\s+(\d+)(?:\s*(?:-|to|through)\s*(\d+))?`)

// lineMention maps explicit line references ("line 42", "lines 42-67")
// to the symbols covering those lines in the target file.
type lineMention struct{}

func (lineMention) Method() ResolutionMethod { return MethodLineMention }

func (lineMention) Attempt(task, targetFile string, g *graph.Graph) ([]SymbolRange, float64, bool) {
	matches := lineRefPattern.FindAllStringSubmatch(task, -1)
	if len(matches) == 0 {
		return nil, 0, false
	}

	var spans []lineSpan
	for _, m := range matches {
		start, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		span := lineSpan{start, start}
		if m[2] != "" {
			if end, err := strconv.Atoi(m[2]); err == nil && end > start {
				span.end = end
			}
		}
		spans = append(spans, span)
	}

	symbols := symbolsInSpans(g, targetFile, spans)
	if len(symbols) == 0 {
		return nil, 0, false
	}
	return symbols, 0.90, true
}

// =============================================================================
// 3. Error / Stack-Trace Location (confidence 0.88)
// =============================================================================

var (
	// Python traceback form: File "services/api.py", line 42
	tracebackPattern = regexp.MustCompile(`File\s+"([^"]+)",\s+line\s+(\d+)`)

	// Compiler/runtime form: services/api.py:42
	pathLinePattern = regexp.MustCompile(`([\w./\\-]+\.\w+):(\d+)`)
)

// errorLocation extracts path:line references from error output pasted
// into the task. A reference naming a different file resolves against
// that file instead, supporting cross-file diagnosis.
type errorLocation struct{}

func (errorLocation) Method() ResolutionMethod { return MethodErrorLocation }

func (errorLocation) Attempt(task, targetFile string, g *graph.Graph) ([]SymbolRange, float64, bool) {
	type ref struct {
		path string
		line int
	}
	var refs []ref

	for _, m := range tracebackPattern.FindAllStringSubmatch(task, -1) {
		if n, err := strconv.Atoi(m[2]); err == nil {
			refs = append(refs, ref{m[1], n})
		}
	}
	for _, m := range pathLinePattern.FindAllStringSubmatch(task, -1) {
		if n, err := strconv.Atoi(m[2]); err == nil {
			refs = append(refs, ref{m[1], n})
		}
	}
	if len(refs) == 0 {
		return nil, 0, false
	}

	var symbols []SymbolRange
	for _, r := range refs {
		file := targetFile
		if r.path != "" && !samePath(r.path, targetFile) {
			file = r.path
		}
		symbols = append(symbols, symbolsAtLines(g, file, []int{r.line})...)
	}

	symbols = dedupeRanges(symbols)
	if len(symbols) == 0 {
		return nil, 0, false
	}
	return symbols, 0.88, true
}

// =============================================================================
// 4. Semantic Fuzzy Match (confidence 0.70 + 0.05n, clamped to 0.85)
// =============================================================================

// semanticThreshold is the minimum similarity ratio for a fuzzy match.
const semanticThreshold = 0.75

// stopWords are task words too generic to identify a symbol.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "from": true, "into": true, "when": true, "where": true,
	"fix": true, "bug": true, "error": true, "issue": true, "update": true,
	"change": true, "add": true, "remove": true, "make": true, "use": true,
	"function": true, "method": true, "class": true, "variable": true,
	"file": true, "code": true, "line": true, "lines": true, "should": true,
	"broken": true, "wrong": true, "please": true, "need": true, "needs": true,
}

// semanticMatch scores every symbol in the target file against the
// task's candidate words using string similarity over the full name
// and its case-split sub-words.
type semanticMatch struct{}

func (semanticMatch) Method() ResolutionMethod { return MethodSemantic }

func (semanticMatch) Attempt(task, targetFile string, g *graph.Graph) ([]SymbolRange, float64, bool) {
	var candidates []string
	for _, w := range extractWords(task, 3) {
		lw := strings.ToLower(w)
		if !stopWords[lw] {
			candidates = append(candidates, lw)
		}
	}
	if len(candidates) == 0 {
		return nil, 0, false
	}

	var symbols []SymbolRange
	for _, s := range g.FileSymbols(targetFile) {
		if bestSimilarity(candidates, s.Name) >= semanticThreshold {
			if sr, ok := symbolRange(s, true); ok {
				symbols = append(symbols, sr)
			}
		}
	}
	if len(symbols) == 0 {
		return nil, 0, false
	}

	confidence := 0.70 + 0.05*float64(len(symbols))
	if confidence > 0.85 {
		confidence = 0.85
	}
	return symbols, confidence, true
}

// bestSimilarity returns the highest similarity ratio between any
// candidate word and the symbol's full name or its sub-words.
func bestSimilarity(candidates []string, symbolName string) float64 {
	targets := append([]string{strings.ToLower(symbolName)}, graph.SplitIdentifier(symbolName)...)

	best := 0.0
	for _, c := range candidates {
		for _, t := range targets {
			if r := similarityRatio(c, t); r > best {
				best = r
			}
		}
	}
	return best
}

// =============================================================================
// Text Helpers
// =============================================================================

var wordPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// extractWords returns identifier-like words of at least minLen runes.
func extractWords(text string, minLen int) []string {
	var words []string
	for _, w := range wordPattern.FindAllString(text, -1) {
		if len(w) >= minLen {
			words = append(words, w)
		}
	}
	return words
}

// mentionsWord reports whether text contains name on word boundaries,
// ignoring case.
func mentionsWord(text, name string) bool {
	if name == "" {
		return false
	}
	text = strings.ToLower(text)
	name = strings.ToLower(name)
	idx := 0
	for {
		i := strings.Index(text[idx:], name)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(name)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// samePath compares paths loosely: exact, or one is a suffix of the
// other at a path boundary. Error output rarely uses the same root as
// the index.
func samePath(a, b string) bool {
	if a == b {
		return true
	}
	return strings.HasSuffix(a, "/"+b) || strings.HasSuffix(b, "/"+a)
}

// lineSpan is an inclusive line range; a single line has start == end.
type lineSpan struct {
	start, end int
}

// symbolsInSpans returns the symbols in file whose range intersects any
// of the given spans.
func symbolsInSpans(g *graph.Graph, file string, spans []lineSpan) []SymbolRange {
	var out []SymbolRange
	for _, s := range g.FileSymbols(file) {
		for _, sp := range spans {
			if s.LineStart <= sp.end && s.LineEnd >= sp.start {
				if sr, ok := symbolRange(s, true); ok {
					out = append(out, sr)
				}
				break
			}
		}
	}
	return out
}

// symbolsAtLines returns the symbols in file whose range covers any of
// the given lines.
func symbolsAtLines(g *graph.Graph, file string, lines []int) []SymbolRange {
	spans := make([]lineSpan, 0, len(lines))
	for _, line := range lines {
		spans = append(spans, lineSpan{line, line})
	}
	return symbolsInSpans(g, file, spans)
}

// dedupeRanges removes duplicate symbols, keyed by file, name, and
// start line.
func dedupeRanges(symbols []SymbolRange) []SymbolRange {
	type key struct {
		file, name string
		line       int
	}
	seen := map[key]bool{}
	var out []SymbolRange
	for _, s := range symbols {
		k := key{s.FilePath, s.Name, s.LineStart}
		if !seen[k] {
			seen[k] = true
			out = append(out, s)
		}
	}
	return out
}

// similarityRatio converts Levenshtein distance into a [0,1] ratio:
// 1.0 for identical strings, 0.0 for nothing in common.
func similarityRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(longest)
}

// levenshtein computes the edit distance between two strings using
// two-row dynamic programming.
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	if len(a) > len(b) {
		a, b = b, a
	}

	prev := make([]int, len(a)+1)
	curr := make([]int, len(a)+1)
	for i := range prev {
		prev[i] = i
	}

	for j := 1; j <= len(b); j++ {
		curr[0] = j
		for i := 1; i <= len(a); i++ {
			if a[i-1] == b[j-1] {
				curr[i] = prev[i-1]
			} else {
				curr[i] = 1 + minOf3(prev[i-1], prev[i], curr[i-1])
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(a)]
}

func minOf3(a, b, c int) int {
	if a <= b && a <= c {
		return a
	}
	if b <= c {
		return b
	}
	return c
}
