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
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/python"
)

// SyntaxChecker validates that source content parses cleanly.
//
// The patch applier uses this as its post-edit gate: a file whose
// patched content fails the check is rejected before anything is
// written to disk.
type SyntaxChecker struct {
	languages map[string]*sitter.Language
}

// NewSyntaxChecker creates a checker for the built-in languages.
func NewSyntaxChecker() *SyntaxChecker {
	return &SyntaxChecker{
		languages: map[string]*sitter.Language{
			".py": python.GetLanguage(),
			".go": golang.GetLanguage(),
		},
	}
}

// Check reports whether content parses without syntax errors.
//
// Files with an unrecognized extension are conservatively treated as
// valid, since no grammar is available to dispute them. The error
// return covers parser failures, not syntax errors in the content.
func (c *SyntaxChecker) Check(ctx context.Context, path string, content []byte) (bool, error) {
	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := c.languages[ext]
	if !ok {
		return true, nil
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return false, fmt.Errorf("syntax check %s: %w", path, err)
	}
	defer tree.Close()

	return !tree.RootNode().HasError(), nil
}
