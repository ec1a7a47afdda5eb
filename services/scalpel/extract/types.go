// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extract provides language-agnostic structural extraction of
// source files.
//
// # Description
//
// Extractors turn raw source text into FileExtraction records: the
// classes, functions, variables, imports, and call sites a file
// declares, with 1-indexed line ranges. The symbol graph treats these
// records as its sole source of truth for node creation; it never
// inspects source text itself.
//
// Extraction is deliberately shallow. There is no type inference and
// no control-flow analysis - a call site is just a callee name and a
// location, and downstream consumers resolve it by name.
//
// # Thread Safety
//
// Extractors are safe for concurrent use. Each Extract call creates
// its own tree-sitter parser instance internally.
package extract

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// Sentinel errors for extraction operations.
var (
	// ErrFileTooLarge is returned when content exceeds the extractor's
	// configured size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrInvalidContent is returned when content is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid content")

	// ErrUnsupportedLanguage is returned when no extractor is registered
	// for a file's language.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// DefaultMaxFileSize is the maximum file size extractors accept (10MB).
const DefaultMaxFileSize = 10 * 1024 * 1024

// =============================================================================
// Extraction Records
// =============================================================================

// FileExtraction holds all structural information extracted from a
// single source file.
//
// A FileExtraction with a non-empty ParseError and no classes or
// functions indicates an unrecoverable parse failure; consumers skip
// such files entirely rather than ingesting partial data.
type FileExtraction struct {
	// Path is the file path, relative to the project root.
	Path string

	// Language is the canonical language name ("python", "go").
	Language string

	// Hash is the hex-encoded SHA-256 of the file content.
	Hash string

	// Classes are the class (or named type) declarations in the file.
	Classes []ClassDecl

	// Functions are the free functions and methods in the file.
	Functions []FunctionDecl

	// Variables are module/package-level and class-level variables.
	Variables []VariableDecl

	// Imports are the file's import statements.
	Imports []ImportDecl

	// Calls are the call sites found inside function bodies.
	Calls []CallSite

	// ParseError is a human-readable description of a parse failure,
	// or empty if the file parsed cleanly.
	ParseError string
}

// ClassDecl is a class definition extracted from source code.
type ClassDecl struct {
	Name      string
	FilePath  string
	LineStart int
	LineEnd   int
	Docstring string

	// Bases are the base-class names as written in source, unresolved.
	Bases []string
}

// FunctionDecl is a function or method extracted from source code.
type FunctionDecl struct {
	Name      string
	FilePath  string
	LineStart int
	LineEnd   int
	Docstring string

	// Params are the parameter declarations as written in source.
	Params []string

	// ReturnType is the return-type text, or empty if unannotated.
	ReturnType string

	// ParentClass is the enclosing class name for methods, empty for
	// free functions.
	ParentClass string
}

// VariableDecl is a module-level or class-level variable.
type VariableDecl struct {
	Name      string
	FilePath  string
	LineStart int
	LineEnd   int

	// Scope tags where the variable lives: "module" or "class:<Name>".
	Scope string

	// TypeHint is the declared type text, or empty.
	TypeHint string
}

// ImportDecl is a module import statement.
type ImportDecl struct {
	SourceFile string

	// ModuleName is the dotted module name or import path being imported.
	ModuleName string

	// Alias is the local alias, or empty.
	Alias string
}

// CallSite is a function call found in a function body.
type CallSite struct {
	// CallerFunction is the name of the enclosing function.
	CallerFunction string

	// CalleeName is the bare callee name as written at the call site.
	// Attribute/selector calls are reduced to their final component
	// (obj.method() yields "method").
	CalleeName string

	FilePath string
	Line     int
}

// =============================================================================
// Extractor Interface & Registry
// =============================================================================

// Extractor extracts structural information from source content.
//
// Implementations must be safe for concurrent use.
type Extractor interface {
	// Extract parses content and returns the file's structural record.
	//
	// A syntactically invalid file still yields a partial extraction
	// with ParseError set; a non-nil error is returned only for
	// complete failures (oversized input, invalid UTF-8, cancellation).
	Extract(ctx context.Context, content []byte, filePath string) (*FileExtraction, error)

	// Language returns the canonical language name.
	Language() string

	// Extensions returns the file extensions this extractor handles,
	// including the leading dot.
	Extensions() []string
}

// Registry maps languages and file extensions to extractors.
//
// # Description
//
// The registry is constructed once at startup and passed explicitly to
// whatever drives extraction. There is no process-global parser state;
// two registries are fully independent.
//
// # Thread Safety
//
// Registry is immutable after construction and safe for concurrent
// reads. Register must not be called concurrently with lookups.
type Registry struct {
	byLanguage map[string]Extractor
	byExt      map[string]Extractor
}

// NewRegistry creates a registry with the built-in extractors
// (Python and Go) pre-registered.
func NewRegistry() *Registry {
	r := &Registry{
		byLanguage: make(map[string]Extractor),
		byExt:      make(map[string]Extractor),
	}
	r.Register(NewPythonExtractor())
	r.Register(NewGoExtractor())
	return r
}

// Register adds an extractor, keyed by its language and extensions.
// A later registration for the same language or extension wins.
func (r *Registry) Register(e Extractor) {
	r.byLanguage[e.Language()] = e
	for _, ext := range e.Extensions() {
		r.byExt[strings.ToLower(ext)] = e
	}
}

// ForFile returns the extractor responsible for path, based on its
// extension. The second return is false if the file is unsupported.
func (r *Registry) ForFile(path string) (Extractor, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	e, ok := r.byExt[ext]
	return e, ok
}

// ForLanguage returns the extractor registered for a language name.
func (r *Registry) ForLanguage(language string) (Extractor, bool) {
	e, ok := r.byLanguage[language]
	return e, ok
}

// DetectLanguage returns the canonical language name for path, or ""
// if no extractor handles it.
func (r *Registry) DetectLanguage(path string) string {
	if e, ok := r.ForFile(path); ok {
		return e.Language()
	}
	return ""
}

// Languages returns the registered language names.
func (r *Registry) Languages() []string {
	langs := make([]string, 0, len(r.byLanguage))
	for lang := range r.byLanguage {
		langs = append(langs, lang)
	}
	return langs
}
