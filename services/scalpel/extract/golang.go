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
	"fmt"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// GoExtractor extracts structural information from Go source using
// tree-sitter.
//
// Named types (structs and interfaces) map onto class declarations so
// the rest of the system can treat both languages uniformly. Methods
// carry their receiver's base type as ParentClass.
type GoExtractor struct {
	maxFileSize int
}

// NewGoExtractor creates a Go extractor with default limits.
func NewGoExtractor() *GoExtractor {
	return &GoExtractor{maxFileSize: DefaultMaxFileSize}
}

// Language returns "go".
func (e *GoExtractor) Language() string { return "go" }

// Extensions returns the file extensions handled by this extractor.
func (e *GoExtractor) Extensions() []string { return []string{".go"} }

// Extract parses Go source and returns its structural record.
func (e *GoExtractor) Extract(ctx context.Context, content []byte, filePath string) (*FileExtraction, error) {
	if len(content) > e.maxFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, len(content), e.maxFileSize)
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: not valid UTF-8", ErrInvalidContent)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filePath, err)
	}
	defer tree.Close()

	result := &FileExtraction{
		Path:     filePath,
		Language: "go",
		Hash:     hashContent(content),
	}

	root := tree.RootNode()
	if root.HasError() {
		result.ParseError = "source contains syntax errors"
	}

	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		switch child.Type() {
		case "function_declaration":
			if fn := e.processFuncDecl(child, content, filePath); fn != nil {
				result.Functions = append(result.Functions, *fn)
			}
		case "method_declaration":
			if fn := e.processMethodDecl(child, content, filePath); fn != nil {
				result.Functions = append(result.Functions, *fn)
			}
		case "type_declaration":
			e.processTypeDecl(child, content, filePath, result)
		case "var_declaration", "const_declaration":
			e.processVarDecl(child, content, filePath, result)
		case "import_declaration":
			e.processImportDecl(child, content, filePath, result)
		}
	}

	e.collectCalls(root, content, filePath, "", result)
	return result, nil
}

// processFuncDecl extracts a package-level function.
func (e *GoExtractor) processFuncDecl(node *sitter.Node, content []byte, filePath string) *FunctionDecl {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	fn := &FunctionDecl{
		Name:      nodeText(nameNode, content),
		FilePath:  filePath,
		LineStart: int(node.StartPoint().Row) + 1,
		LineEnd:   int(node.EndPoint().Row) + 1,
	}
	e.fillSignature(node, content, fn)
	return fn
}

// processMethodDecl extracts a method; the receiver's base type becomes
// the parent class.
func (e *GoExtractor) processMethodDecl(node *sitter.Node, content []byte, filePath string) *FunctionDecl {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	fn := &FunctionDecl{
		Name:      nodeText(nameNode, content),
		FilePath:  filePath,
		LineStart: int(node.StartPoint().Row) + 1,
		LineEnd:   int(node.EndPoint().Row) + 1,
	}
	if recv := node.ChildByFieldName("receiver"); recv != nil {
		fn.ParentClass = receiverBaseType(recv, content)
	}
	e.fillSignature(node, content, fn)
	return fn
}

// fillSignature copies parameter declarations and the result type.
func (e *GoExtractor) fillSignature(node *sitter.Node, content []byte, fn *FunctionDecl) {
	if params := node.ChildByFieldName("parameters"); params != nil {
		for i := 0; i < int(params.ChildCount()); i++ {
			p := params.Child(i)
			if p.Type() == "parameter_declaration" || p.Type() == "variadic_parameter_declaration" {
				fn.Params = append(fn.Params, nodeText(p, content))
			}
		}
	}
	if result := node.ChildByFieldName("result"); result != nil {
		fn.ReturnType = nodeText(result, content)
	}
}

// processTypeDecl records struct and interface types as classes.
// Embedded types become base-class names so inheritance queries can
// follow them.
func (e *GoExtractor) processTypeDecl(node *sitter.Node, content []byte, filePath string, result *FileExtraction) {
	for i := 0; i < int(node.ChildCount()); i++ {
		spec := node.Child(i)
		if spec.Type() != "type_spec" {
			continue
		}
		nameNode := spec.ChildByFieldName("name")
		typeNode := spec.ChildByFieldName("type")
		if nameNode == nil || typeNode == nil {
			continue
		}
		if typeNode.Type() != "struct_type" && typeNode.Type() != "interface_type" {
			continue
		}
		cls := ClassDecl{
			Name:      nodeText(nameNode, content),
			FilePath:  filePath,
			LineStart: int(spec.StartPoint().Row) + 1,
			LineEnd:   int(spec.EndPoint().Row) + 1,
			Bases:     embeddedTypes(typeNode, content),
		}
		result.Classes = append(result.Classes, cls)
	}
}

// processVarDecl records package-level var and const declarations.
func (e *GoExtractor) processVarDecl(node *sitter.Node, content []byte, filePath string, result *FileExtraction) {
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		for i := 0; i < int(n.ChildCount()); i++ {
			spec := n.Child(i)
			switch spec.Type() {
			case "var_spec", "const_spec":
				typeHint := ""
				if typ := spec.ChildByFieldName("type"); typ != nil {
					typeHint = nodeText(typ, content)
				}
				for j := 0; j < int(spec.ChildCount()); j++ {
					id := spec.Child(j)
					if id.Type() != "identifier" {
						break
					}
					result.Variables = append(result.Variables, VariableDecl{
						Name:      nodeText(id, content),
						FilePath:  filePath,
						LineStart: int(spec.StartPoint().Row) + 1,
						LineEnd:   int(spec.EndPoint().Row) + 1,
						Scope:     "module",
						TypeHint:  typeHint,
					})
				}
			case "var_spec_list", "const_spec_list":
				walk(spec)
			}
		}
	}
	walk(node)
}

// processImportDecl records import paths and their aliases.
func (e *GoExtractor) processImportDecl(node *sitter.Node, content []byte, filePath string, result *FileExtraction) {
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			switch child.Type() {
			case "import_spec":
				imp := ImportDecl{SourceFile: filePath}
				if path := child.ChildByFieldName("path"); path != nil {
					imp.ModuleName = strings.Trim(nodeText(path, content), "`\"")
				}
				if name := child.ChildByFieldName("name"); name != nil {
					imp.Alias = nodeText(name, content)
				}
				if imp.ModuleName != "" {
					result.Imports = append(result.Imports, imp)
				}
			case "import_spec_list":
				walk(child)
			}
		}
	}
	walk(node)
}

// collectCalls walks the tree recording call expressions inside
// function bodies.
func (e *GoExtractor) collectCalls(node *sitter.Node, content []byte, filePath, callerFn string, result *FileExtraction) {
	switch node.Type() {
	case "function_declaration", "method_declaration":
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			callerFn = nodeText(nameNode, content)
		}
	case "call_expression":
		if callerFn != "" {
			if fn := node.ChildByFieldName("function"); fn != nil {
				callee := ""
				switch fn.Type() {
				case "identifier":
					callee = nodeText(fn, content)
				case "selector_expression":
					if field := fn.ChildByFieldName("field"); field != nil {
						callee = nodeText(field, content)
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
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		e.collectCalls(node.Child(i), content, filePath, callerFn, result)
	}
}

// receiverBaseType extracts the receiver's type name, stripping
// pointers and generic brackets: "(s *Store[T])" yields "Store".
func receiverBaseType(recv *sitter.Node, content []byte) string {
	for i := 0; i < int(recv.ChildCount()); i++ {
		p := recv.Child(i)
		if p.Type() != "parameter_declaration" {
			continue
		}
		typ := p.ChildByFieldName("type")
		if typ == nil {
			continue
		}
		text := nodeText(typ, content)
		text = strings.TrimPrefix(text, "*")
		if idx := strings.IndexByte(text, '['); idx > 0 {
			text = text[:idx]
		}
		return text
	}
	return ""
}

// embeddedTypes lists embedded struct fields and interface embeds,
// which serve as base classes for inheritance queries.
func embeddedTypes(typeNode *sitter.Node, content []byte) []string {
	var bases []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			switch child.Type() {
			case "field_declaration":
				// Embedded field: a type with no name child.
				if child.ChildByFieldName("name") == nil {
					if typ := child.ChildByFieldName("type"); typ != nil {
						text := strings.TrimPrefix(nodeText(typ, content), "*")
						bases = append(bases, lastAttributeComponent(text))
					}
				}
			case "type_identifier":
				bases = append(bases, nodeText(child, content))
			case "qualified_type":
				bases = append(bases, lastAttributeComponent(nodeText(child, content)))
			case "field_declaration_list", "method_spec_list":
				walk(child)
			}
		}
	}
	walk(typeNode)
	return bases
}
