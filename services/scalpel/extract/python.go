// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// PythonExtractor extracts structural information from Python source
// using tree-sitter.
//
// # Description
//
// The extractor walks the concrete syntax tree for top-level classes,
// functions, assignments, and imports, then descends into function
// bodies to collect call sites. Nested functions and comprehension
// scopes are not modeled.
//
// # Thread Safety
//
// Safe for concurrent use. Each Extract call creates its own parser.
type PythonExtractor struct {
	maxFileSize int
}

// NewPythonExtractor creates a Python extractor with default limits.
func NewPythonExtractor() *PythonExtractor {
	return &PythonExtractor{maxFileSize: DefaultMaxFileSize}
}

// Language returns "python".
func (e *PythonExtractor) Language() string { return "python" }

// Extensions returns the file extensions handled by this extractor.
func (e *PythonExtractor) Extensions() []string { return []string{".py"} }

// Extract parses Python source and returns its structural record.
func (e *PythonExtractor) Extract(ctx context.Context, content []byte, filePath string) (*FileExtraction, error) {
	if len(content) > e.maxFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, len(content), e.maxFileSize)
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: not valid UTF-8", ErrInvalidContent)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filePath, err)
	}
	defer tree.Close()

	result := &FileExtraction{
		Path:     filePath,
		Language: "python",
		Hash:     hashContent(content),
	}

	root := tree.RootNode()
	if root.HasError() {
		result.ParseError = "source contains syntax errors"
	}

	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		e.processTopLevel(child, content, filePath, result)
	}

	e.collectCalls(root, content, filePath, "", result)
	return result, nil
}

// processTopLevel dispatches a direct child of the module node.
func (e *PythonExtractor) processTopLevel(node *sitter.Node, content []byte, filePath string, result *FileExtraction) {
	switch node.Type() {
	case "decorated_definition":
		if def := node.ChildByFieldName("definition"); def != nil {
			e.processTopLevel(def, content, filePath, result)
		}
	case "class_definition":
		e.processClass(node, content, filePath, result)
	case "function_definition":
		if fn := e.processFunction(node, content, filePath, ""); fn != nil {
			result.Functions = append(result.Functions, *fn)
		}
	case "import_statement":
		e.processImport(node, content, filePath, result)
	case "import_from_statement":
		e.processImportFrom(node, content, filePath, result)
	case "expression_statement":
		e.processModuleAssignment(node, content, filePath, result)
	}
}

// processClass extracts a class definition, its methods, and its
// class-level variables.
func (e *PythonExtractor) processClass(node *sitter.Node, content []byte, filePath string, result *FileExtraction) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, content)

	cls := ClassDecl{
		Name:      name,
		FilePath:  filePath,
		LineStart: int(node.StartPoint().Row) + 1,
		LineEnd:   int(node.EndPoint().Row) + 1,
	}

	// Base classes appear in the superclasses argument list.
	if bases := node.ChildByFieldName("superclasses"); bases != nil {
		for i := 0; i < int(bases.ChildCount()); i++ {
			arg := bases.Child(i)
			switch arg.Type() {
			case "identifier", "attribute":
				cls.Bases = append(cls.Bases, lastAttributeComponent(nodeText(arg, content)))
			}
		}
	}

	body := node.ChildByFieldName("body")
	if body != nil {
		cls.Docstring = extractDocstring(body, content)

		for i := 0; i < int(body.ChildCount()); i++ {
			member := body.Child(i)
			switch member.Type() {
			case "decorated_definition":
				if def := member.ChildByFieldName("definition"); def != nil && def.Type() == "function_definition" {
					if fn := e.processFunction(def, content, filePath, name); fn != nil {
						result.Functions = append(result.Functions, *fn)
					}
				}
			case "function_definition":
				if fn := e.processFunction(member, content, filePath, name); fn != nil {
					result.Functions = append(result.Functions, *fn)
				}
			case "expression_statement":
				if v := assignmentVariable(member, content, filePath, "class:"+name); v != nil {
					result.Variables = append(result.Variables, *v)
				}
			}
		}
	}

	result.Classes = append(result.Classes, cls)
}

// processFunction extracts a function or method declaration.
func (e *PythonExtractor) processFunction(node *sitter.Node, content []byte, filePath, parentClass string) *FunctionDecl {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	fn := &FunctionDecl{
		Name:        nodeText(nameNode, content),
		FilePath:    filePath,
		LineStart:   int(node.StartPoint().Row) + 1,
		LineEnd:     int(node.EndPoint().Row) + 1,
		ParentClass: parentClass,
	}

	if params := node.ChildByFieldName("parameters"); params != nil {
		for i := 0; i < int(params.ChildCount()); i++ {
			p := params.Child(i)
			switch p.Type() {
			case "identifier", "typed_parameter", "default_parameter",
				"typed_default_parameter", "list_splat_pattern", "dictionary_splat_pattern":
				fn.Params = append(fn.Params, nodeText(p, content))
			}
		}
	}
	if ret := node.ChildByFieldName("return_type"); ret != nil {
		fn.ReturnType = nodeText(ret, content)
	}
	if body := node.ChildByFieldName("body"); body != nil {
		fn.Docstring = extractDocstring(body, content)
	}
	return fn
}

// processImport handles `import a.b` and `import a.b as c`.
func (e *PythonExtractor) processImport(node *sitter.Node, content []byte, filePath string, result *FileExtraction) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "dotted_name":
			result.Imports = append(result.Imports, ImportDecl{
				SourceFile: filePath,
				ModuleName: nodeText(child, content),
			})
		case "aliased_import":
			imp := ImportDecl{SourceFile: filePath}
			if n := child.ChildByFieldName("name"); n != nil {
				imp.ModuleName = nodeText(n, content)
			}
			if a := child.ChildByFieldName("alias"); a != nil {
				imp.Alias = nodeText(a, content)
			}
			if imp.ModuleName != "" {
				result.Imports = append(result.Imports, imp)
			}
		}
	}
}

// processImportFrom handles `from a.b import c`. Only the source module
// is recorded; the imported names are not tracked individually.
func (e *PythonExtractor) processImportFrom(node *sitter.Node, content []byte, filePath string, result *FileExtraction) {
	module := node.ChildByFieldName("module_name")
	if module == nil {
		return
	}
	result.Imports = append(result.Imports, ImportDecl{
		SourceFile: filePath,
		ModuleName: nodeText(module, content),
	})
}

// processModuleAssignment records a module-level variable assignment.
func (e *PythonExtractor) processModuleAssignment(node *sitter.Node, content []byte, filePath string, result *FileExtraction) {
	if v := assignmentVariable(node, content, filePath, "module"); v != nil {
		result.Variables = append(result.Variables, *v)
	}
}

// collectCalls walks the tree recording call sites inside function
// bodies. callerFn tracks the nearest enclosing function name; calls at
// module or class scope are skipped.
func (e *PythonExtractor) collectCalls(node *sitter.Node, content []byte, filePath, callerFn string, result *FileExtraction) {
	if node.Type() == "function_definition" {
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			callerFn = nodeText(nameNode, content)
		}
	}

	if node.Type() == "call" && callerFn != "" {
		if fn := node.ChildByFieldName("function"); fn != nil {
			callee := ""
			switch fn.Type() {
			case "identifier":
				callee = nodeText(fn, content)
			case "attribute":
				if attr := fn.ChildByFieldName("attribute"); attr != nil {
					callee = nodeText(attr, content)
				}
			}
			if callee != "" {
				result.Calls = append(result.Calls, CallSite{
					CallerFunction: callerFn,
					CalleeName:     callee,
					FilePath:       filePath,
					Line:           int(node.StartPoint().Row) + 1,
				})
			}
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		e.collectCalls(node.Child(i), content, filePath, callerFn, result)
	}
}

// =============================================================================
// Shared Helpers
// =============================================================================

// nodeText returns the source text covered by a node.
func nodeText(node *sitter.Node, content []byte) string {
	return string(content[node.StartByte():node.EndByte()])
}

// hashContent returns the hex SHA-256 of content.
func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// lastAttributeComponent reduces "pkg.mod.Base" to "Base".
func lastAttributeComponent(s string) string {
	if idx := strings.LastIndexByte(s, '.'); idx >= 0 {
		return s[idx+1:]
	}
	return s
}

// extractDocstring returns the docstring if the block's first statement
// is a bare string literal, with surrounding quotes stripped.
func extractDocstring(body *sitter.Node, content []byte) string {
	if body.ChildCount() == 0 {
		return ""
	}
	first := body.Child(0)
	if first.Type() != "expression_statement" || first.ChildCount() == 0 {
		return ""
	}
	str := first.Child(0)
	if str.Type() != "string" {
		return ""
	}
	return stripStringQuotes(nodeText(str, content))
}

// stripStringQuotes removes Python string delimiters and prefixes.
func stripStringQuotes(s string) string {
	s = strings.TrimLeft(s, "rRbBuUfF")
	for _, q := range []string{`"""`, "'''", `"`, "'"} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return strings.TrimSpace(s[len(q) : len(s)-len(q)])
		}
	}
	return strings.TrimSpace(s)
}

// assignmentVariable extracts a variable declaration from an
// expression_statement holding an assignment, or nil.
func assignmentVariable(node *sitter.Node, content []byte, filePath, scope string) *VariableDecl {
	if node.ChildCount() == 0 {
		return nil
	}
	assign := node.Child(0)
	if assign.Type() != "assignment" {
		return nil
	}
	left := assign.ChildByFieldName("left")
	if left == nil || left.Type() != "identifier" {
		return nil
	}

	v := &VariableDecl{
		Name:      nodeText(left, content),
		FilePath:  filePath,
		LineStart: int(node.StartPoint().Row) + 1,
		LineEnd:   int(node.EndPoint().Row) + 1,
		Scope:     scope,
	}
	if typ := assign.ChildByFieldName("type"); typ != nil {
		v.TypeHint = nodeText(typ, content)
	}
	return v
}
