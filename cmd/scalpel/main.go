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
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/scalpel/cmd/scalpel/config"
	"github.com/AleutianAI/scalpel/pkg/logging"
)

// =============================================================================
// ROOT COMMAND
// =============================================================================

var (
	// Persistent flags
	flagRoot    string
	flagJSON    bool
	flagVerbose bool

	// logger is built in PersistentPreRunE and shared by all commands.
	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "scalpel",
	Short: "Surgical code edits backed by a project symbol graph",
	Long: `Scalpel builds a structural graph of a project's symbols, resolves
natural-language edit tasks to a minimal edit scope, and applies
model-produced diffs safely with validation and rollback.

Typical workflow:
  scalpel index                          # build the symbol graph
  scalpel resolve "fix parse_headers" --file app/handlers.py
  scalpel apply fix.diff                 # apply a delimited diff
  scalpel query callers parse_headers    # explore the graph`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(); err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := parseLevel(config.Global.Logging.Level)
		if flagVerbose {
			level = logging.LevelDebug
		}
		logger = logging.New(logging.Config{
			Level:   level,
			LogDir:  config.Global.Logging.Dir,
			Service: "cli",
			JSON:    config.Global.Logging.JSON,
		})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", ".",
		"Project root directory")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false,
		"Output as JSON for scripting")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"Enable debug logging")
}

func parseLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
