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
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/scalpel/cmd/scalpel/config"
	"github.com/AleutianAI/scalpel/services/scalpel/extract"
	"github.com/AleutianAI/scalpel/services/scalpel/graph"
	"github.com/AleutianAI/scalpel/services/scalpel/index"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Index the project and keep the graph current",
	Long: `Build the symbol graph, then watch the project tree and re-index
files as they change. File events are debounced so rapid save bursts
trigger a single refresh.

Stops on Ctrl-C, persisting the final graph state.

Examples:
  scalpel watch
  scalpel watch --root ~/src/myproject`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g := graph.New(graph.WithLogger(logger))
	ix := index.NewIndexer(flagRoot, extract.NewRegistry(), g,
		index.WithWorkers(config.Global.Indexing.Workers),
		index.WithLogger(logger))

	result, err := ix.IndexProject(ctx)
	if err != nil {
		return fmt.Errorf("initial index: %w", err)
	}
	if err := g.Save(artifactPath()); err != nil {
		return fmt.Errorf("save graph: %w", err)
	}
	fmt.Printf("Indexed %d files; watching %s for changes (Ctrl-C to stop)\n",
		result.FilesIndexed, flagRoot)

	debounce := time.Duration(config.Global.Indexing.WatchDebounceMS) * time.Millisecond
	w := index.NewWatcher(ix,
		index.WithDebounce(debounce),
		index.WithWatcherLogger(logger))

	err = w.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch: %w", err)
	}

	// Persist whatever the watcher accumulated before shutdown.
	if err := g.Save(artifactPath()); err != nil {
		return fmt.Errorf("save graph on shutdown: %w", err)
	}
	fmt.Println("Graph saved, stopping")
	return nil
}
