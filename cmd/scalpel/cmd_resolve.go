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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/scalpel/services/scalpel/scope"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	resolveFile string
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var resolveCmd = &cobra.Command{
	Use:   "resolve <task>",
	Short: "Resolve an edit task to a minimal edit scope",
	Long: `Map a natural-language edit task onto the symbols it should touch.

Resolution tries, in order: explicit symbol mentions, line-number
mentions, error locations in the task text, then fuzzy semantic
matching. When nothing resolves above the confidence threshold the
whole file is returned as a fallback scope.

Examples:
  scalpel resolve "fix the retry loop in parse_headers" --file app/handlers.py
  scalpel resolve "change line 47" --file app/handlers.py --json`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVarP(&resolveFile, "file", "f", "",
		"Target file, relative to the project root (required)")
	resolveCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(resolveCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runResolve(cmd *cobra.Command, args []string) error {
	g, err := loadGraph()
	if err != nil {
		return err
	}

	resolver := scope.NewResolver(g, scope.WithLogger(logger))
	editScope := resolver.Resolve(args[0], resolveFile)

	if flagJSON {
		return printJSON(editScope)
	}

	fmt.Printf("Method: %s (confidence %.2f)\n", editScope.Method, editScope.Confidence)
	if editScope.IsFallback() {
		fmt.Printf("No symbol-level scope resolved; edit the whole file %s\n", resolveFile)
		return nil
	}
	fmt.Println("Primary symbols:")
	for _, s := range editScope.PrimarySymbols {
		fmt.Printf("  %-10s %-30s %s:%d-%d\n", s.Kind, s.Name, s.FilePath, s.LineStart, s.LineEnd)
	}
	if len(editScope.ContextSymbols) > 0 {
		fmt.Println("Context (read-only):")
		for _, s := range editScope.ContextSymbols {
			fmt.Printf("  %-10s %-30s %s:%d-%d\n", s.Kind, s.Name, s.FilePath, s.LineStart, s.LineEnd)
		}
	}
	fmt.Printf("Affected files: %v\n", editScope.AffectedFiles)
	return nil
}
