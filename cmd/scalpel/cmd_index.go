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
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/scalpel/cmd/scalpel/config"
	"github.com/AleutianAI/scalpel/services/scalpel/extract"
	"github.com/AleutianAI/scalpel/services/scalpel/graph"
	"github.com/AleutianAI/scalpel/services/scalpel/index"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	indexWorkers int
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the symbol graph for the project",
	Long: `Walk the project tree, extract symbols from every supported source
file, and persist the resulting graph under <root>/.scalpel/graph.bin.

Skips common non-source directories (.git, node_modules, venv, ...).
Re-running replaces the previous artifact.

Examples:
  scalpel index
  scalpel index --root ~/src/myproject --workers 4`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().IntVar(&indexWorkers, "workers", 0,
		"Concurrent extraction workers (0 uses the config value)")
	rootCmd.AddCommand(indexCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runIndex(cmd *cobra.Command, args []string) error {
	workers := indexWorkers
	if workers <= 0 {
		workers = config.Global.Indexing.Workers
	}

	g := graph.New(graph.WithLogger(logger))
	ix := index.NewIndexer(flagRoot, extract.NewRegistry(), g,
		index.WithWorkers(workers),
		index.WithLogger(logger))

	result, err := ix.IndexProject(cmd.Context())
	if err != nil {
		return fmt.Errorf("index project: %w", err)
	}

	if err := g.Save(artifactPath()); err != nil {
		return fmt.Errorf("save graph: %w", err)
	}

	stats := g.Stats()
	if flagJSON {
		return printJSON(map[string]any{
			"files_indexed": result.FilesIndexed,
			"files_failed":  result.FilesFailed,
			"duration_ms":   result.Duration.Milliseconds(),
			"graph":         stats,
		})
	}

	fmt.Printf("Indexed %d files in %s (%d failed)\n",
		result.FilesIndexed, result.Duration.Round(time.Millisecond), result.FilesFailed)
	fmt.Printf("Graph: %d nodes, %d edges -> %s\n", stats.Nodes, stats.Edges, artifactPath())
	return nil
}
