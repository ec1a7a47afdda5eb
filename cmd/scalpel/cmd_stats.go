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
	"sort"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/scalpel/services/scalpel/telemetry"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	statsLast int
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show graph and edit outcome statistics",
	Long: `Print node and edge counts from the indexed graph alongside
aggregates from the edit metrics log: success rate, fallback rate,
average resolution confidence, and hunk totals.

Examples:
  scalpel stats
  scalpel stats --last 50 --json`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().IntVar(&statsLast, "last", 0,
		"Aggregate only the most recent N edits (0 means all)")
	rootCmd.AddCommand(statsCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runStats(cmd *cobra.Command, args []string) error {
	g, err := loadGraph()
	if err != nil {
		return err
	}
	graphStats := g.Stats()

	recorder := telemetry.NewRecorder(stateDir(), logger)
	editStats, err := recorder.ReadStats(statsLast)
	if err != nil {
		return fmt.Errorf("read edit metrics: %w", err)
	}

	if flagJSON {
		return printJSON(map[string]any{
			"graph": graphStats,
			"edits": editStats,
		})
	}

	fmt.Printf("Graph: %d nodes, %d edges\n", graphStats.Nodes, graphStats.Edges)
	for _, kind := range sortedKeys(graphStats.NodesByKind) {
		fmt.Printf("  %-10s %d\n", kind, graphStats.NodesByKind[kind])
	}
	fmt.Println("Edges by type:")
	for _, typ := range sortedKeys(graphStats.EdgesByType) {
		fmt.Printf("  %-10s %d\n", typ, graphStats.EdgesByType[typ])
	}

	if editStats.Count == 0 {
		fmt.Println("No recorded edits")
		return nil
	}
	fmt.Printf("Edits: %d recorded\n", editStats.Count)
	fmt.Printf("  success rate     %.1f%%\n", editStats.SuccessRate*100)
	fmt.Printf("  fallback rate    %.1f%%\n", editStats.FallbackRate*100)
	fmt.Printf("  avg confidence   %.2f\n", editStats.AvgConfidence)
	fmt.Printf("  hunks            %d applied, %d failed\n",
		editStats.HunksApplied, editStats.HunksFailed)
	for _, method := range sortedKeys(editStats.MethodCounts) {
		fmt.Printf("  via %-15s %d\n", method, editStats.MethodCounts[method])
	}
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
