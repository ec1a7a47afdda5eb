// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/AleutianAI/scalpel/services/scalpel/graph"
	"github.com/AleutianAI/scalpel/services/scalpel/index"
)

// =============================================================================
// SHARED HELPERS
// =============================================================================

// stateDir returns the per-project state directory under the root.
func stateDir() string {
	return filepath.Join(flagRoot, index.StateDirName)
}

// artifactPath returns where the serialized graph lives.
func artifactPath() string {
	return filepath.Join(stateDir(), "graph.bin")
}

// loadGraph loads the persisted symbol graph, translating a missing
// artifact into actionable advice.
func loadGraph() (*graph.Graph, error) {
	g, err := graph.Load(artifactPath(), graph.WithLogger(logger))
	if errors.Is(err, graph.ErrArtifactNotFound) {
		return nil, fmt.Errorf("no graph artifact at %s; run 'scalpel index' first", artifactPath())
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

// printJSON renders v as indented JSON on stdout.
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// printSymbols renders query results as a human-readable table.
func printSymbols(symbols []graph.SymbolSummary) {
	if len(symbols) == 0 {
		fmt.Println("No matches found")
		return
	}
	for _, s := range symbols {
		loc := s.FilePath
		if s.LineStart > 0 {
			loc = fmt.Sprintf("%s:%d", s.FilePath, s.LineStart)
		}
		name := s.Name
		if s.ParentClass != "" {
			name = s.ParentClass + "." + s.Name
		}
		fmt.Printf("  %-10s %-40s %s\n", s.Kind, name, loc)
	}
}

// readInput reads diff text from a file argument, or stdin when the
// argument is absent or "-".
func readInput(args []string) (string, error) {
	if len(args) > 0 && args[0] != "-" {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("read diff file: %w", err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}
