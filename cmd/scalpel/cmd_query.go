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

	"github.com/AleutianAI/scalpel/services/scalpel/graph"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	queryDepth int
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var queryCmd = &cobra.Command{
	Use:   "query <kind> <name>",
	Short: "Query the symbol graph",
	Long: `Run a graph query against the indexed project.

Kinds:
  callers <function>   functions that call the named function
  callees <function>   functions the named function calls
  refs <name>          call sites, references and importers of a symbol
  inherits <class>     the inheritance chain of a class, nearest first
  related <name>       symbols within graph distance of the named symbol
  symbols <file>       symbols declared in a file, in order
  impact <file>        files that transitively import the given file
  find <name>          symbols with the given name, any kind

Examples:
  scalpel query callers parse_headers
  scalpel query impact app/handlers.py --json
  scalpel query related RequestHandler --depth 2`,
	Args: cobra.ExactArgs(2),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVar(&queryDepth, "depth", 1,
		"Traversal depth for 'related' queries")
	rootCmd.AddCommand(queryCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runQuery(cmd *cobra.Command, args []string) error {
	g, err := loadGraph()
	if err != nil {
		return err
	}
	kind, name := args[0], args[1]

	// Impact is the one query that returns file paths, not symbols.
	if kind == "impact" {
		files := g.ImpactAnalysis(name)
		if flagJSON {
			return printJSON(map[string]any{"file": name, "impacted": files})
		}
		if len(files) == 0 {
			fmt.Println("No dependent files")
			return nil
		}
		for _, f := range files {
			fmt.Printf("  %s\n", f)
		}
		return nil
	}

	var symbols []graph.SymbolSummary
	switch kind {
	case "callers":
		symbols = g.FindCallers(name)
	case "callees":
		symbols = g.FindCallees(name)
	case "refs":
		symbols = g.FindReferences(name)
	case "inherits":
		symbols = g.InheritanceChain(name)
	case "related":
		symbols = g.RelatedSymbols(name, queryDepth)
	case "symbols":
		symbols = g.FileSymbols(name)
	case "find":
		symbols = g.FindSymbol(name)
	default:
		return fmt.Errorf("unknown query kind %q", kind)
	}

	if flagJSON {
		return printJSON(symbols)
	}
	printSymbols(symbols)
	return nil
}
