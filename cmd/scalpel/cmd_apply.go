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
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/scalpel/cmd/scalpel/config"
	"github.com/AleutianAI/scalpel/services/scalpel/diffparse"
	"github.com/AleutianAI/scalpel/services/scalpel/extract"
	"github.com/AleutianAI/scalpel/services/scalpel/patch"
	"github.com/AleutianAI/scalpel/services/scalpel/scope"
	"github.com/AleutianAI/scalpel/services/scalpel/telemetry"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	applyDryRun       bool
	applyIgnoreSyntax bool
	applyFuzzyWindow  int
	applyTask         string
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var applyCmd = &cobra.Command{
	Use:   "apply [diff-file]",
	Short: "Apply a delimited diff to the project",
	Long: `Parse a diff in the @@DIFF_START@@ / @@DIFF_END@@ format, validate
its hunks against the current file contents, and apply it with fuzzy
anchoring, syntax validation, and rollback on failure.

Reads the diff from the given file, or from stdin when the argument is
omitted or "-". Every run appends an entry to the edit metrics log.

Examples:
  scalpel apply fix.diff
  model-output | scalpel apply
  scalpel apply fix.diff --dry-run
  scalpel apply fix.diff --task "fix parse_headers"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runApply,
}

func init() {
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false,
		"Render a unified-diff preview instead of writing files")
	applyCmd.Flags().BoolVar(&applyIgnoreSyntax, "ignore-syntax-errors", false,
		"Write files even when the patched content fails to parse")
	applyCmd.Flags().IntVar(&applyFuzzyWindow, "fuzzy-window", 0,
		"Hunk anchor drift tolerance in lines (0 uses the config value)")
	applyCmd.Flags().StringVar(&applyTask, "task", "",
		"Original edit task; resolved scope is recorded in the metrics log")
	rootCmd.AddCommand(applyCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runApply(cmd *cobra.Command, args []string) error {
	start := time.Now()

	text, err := readInput(args)
	if err != nil {
		return err
	}

	parsed, err := diffparse.Parse(text)
	if err != nil {
		return fmt.Errorf("parse diff: %w", err)
	}

	// Validate against what is on disk right now. Files we cannot read
	// stay absent from the map and fail their hunks during validation.
	contents := make(map[string]string, len(parsed.FilePatches))
	for _, fp := range parsed.FilePatches {
		data, readErr := os.ReadFile(filepath.Join(flagRoot, filepath.FromSlash(fp.FilePath)))
		if readErr != nil {
			logger.Warn("diff targets an unreadable file", "file", fp.FilePath, "error", readErr)
			continue
		}
		contents[fp.FilePath] = string(data)
	}
	validated, err := diffparse.Validate(parsed, contents)
	if err != nil {
		return fmt.Errorf("validate diff: %w", err)
	}

	if applyDryRun {
		preview, previewErr := patch.Preview(validated)
		if previewErr != nil {
			return previewErr
		}
		fmt.Print(preview)
		return nil
	}

	window := applyFuzzyWindow
	if window <= 0 {
		window = config.Global.Patching.FuzzyWindow
	}
	opts := []patch.Option{
		patch.WithFuzzyWindow(window),
		patch.WithLogger(logger),
	}
	if config.Global.Patching.ValidateSyntax {
		opts = append(opts, patch.WithSyntaxChecker(extract.NewSyntaxChecker()))
	}
	if applyIgnoreSyntax {
		opts = append(opts, patch.WithIgnoreSyntaxErrors())
	}

	applier := patch.NewApplier(flagRoot, opts...)
	result := applier.Apply(cmd.Context(), validated)

	recordApply(validated, result, time.Since(start))

	if flagJSON {
		return printJSON(result)
	}

	fmt.Printf("Run %s: applied %d hunks, %d failed\n",
		result.RunID, result.HunksApplied, result.HunksFailed)
	for _, f := range result.FailedHunks {
		fmt.Printf("  FAILED %s line %d: %s\n", f.FilePath, f.LineNumber, f.Reason)
	}
	if !result.SyntaxValid {
		fmt.Println("Syntax validation failed on the patched content")
	}
	for _, f := range result.FilesModified {
		fmt.Printf("  modified %s\n", f)
	}
	if !result.Success {
		return fmt.Errorf("apply incomplete")
	}
	return nil
}

// recordApply appends a metrics entry; failures are logged, never
// surfaced to the user.
func recordApply(parsed *diffparse.ParsedDiff, result *patch.ApplyResult, elapsed time.Duration) {
	entry := telemetry.EditEntry{
		RunID:        result.RunID,
		HunksApplied: result.HunksApplied,
		HunksFailed:  result.HunksFailed,
		SyntaxValid:  result.SyntaxValid,
		Success:      result.Success,
		DurationMS:   elapsed.Milliseconds(),
	}
	if len(parsed.FilePatches) > 0 {
		entry.TargetFile = parsed.FilePatches[0].FilePath
	}

	// When the original task text is supplied, record how scope
	// resolution would have classified it.
	if applyTask != "" && entry.TargetFile != "" {
		if g, err := loadGraph(); err == nil {
			editScope := scope.NewResolver(g, scope.WithLogger(logger)).Resolve(applyTask, entry.TargetFile)
			entry.ResolutionMethod = string(editScope.Method)
			entry.Confidence = editScope.Confidence
			entry.FallbackUsed = editScope.IsFallback()
		}
	}

	recorder := telemetry.NewRecorder(stateDir(), logger)
	if err := recorder.Record(entry); err != nil {
		logger.Warn("failed to record edit metrics", "error", err)
	}
}
