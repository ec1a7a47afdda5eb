// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package patch applies parsed diffs to files with fuzzy anchor
// matching, transactional multi-file semantics, and optional syntax
// validation.
package patch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/AleutianAI/scalpel/pkg/logging"
	"github.com/AleutianAI/scalpel/services/scalpel/diffparse"
)

// DefaultFuzzyWindow is how far (in lines) a hunk's original content
// may drift from its stated anchor and still apply.
const DefaultFuzzyWindow = 3

// SyntaxChecker validates candidate file content before it is written.
//
// The applier treats a missing checker as "always valid": validation
// is skipped, not failed.
type SyntaxChecker interface {
	Check(ctx context.Context, path string, content []byte) (bool, error)
}

// FailedHunk describes one hunk that could not be applied.
type FailedHunk struct {
	FilePath   string `json:"file_path"`
	LineNumber int    `json:"line_number"`
	Reason     string `json:"reason"`
}

// ApplyResult reports the outcome of one Apply call. Created fresh per
// call, never persisted.
type ApplyResult struct {
	// RunID identifies this apply call in logs and metrics.
	RunID string `json:"run_id"`

	// Success is true when at least one hunk was written and the new
	// content passed syntax validation; failed hunks are reported
	// alongside, not as an overall failure.
	Success       bool     `json:"success"`
	FilesModified []string `json:"files_modified"`

	HunksApplied int          `json:"hunks_applied"`
	HunksFailed  int          `json:"hunks_failed"`
	FailedHunks  []FailedHunk `json:"failed_hunks,omitempty"`

	SyntaxValid bool   `json:"syntax_valid"`
	Error       string `json:"error,omitempty"`
}

// Applier applies parsed diffs to files under a project root.
//
// # State Machine
//
// Each Apply call runs three phases, each gating the next:
// compute (in-memory hunk application, descending anchors, fuzzy
// probe), validate (optional syntax oracle on the new content), write
// (atomic temp+rename per file, best-effort rollback on partial
// failure). Either every file in the diff lands on disk or none does.
type Applier struct {
	root        string
	fuzzyWindow int
	checker     SyntaxChecker

	// ignoreSyntaxErrors writes files even when the checker rejects
	// their new content.
	ignoreSyntaxErrors bool

	log *logging.Logger
}

// Option configures an Applier.
type Option func(*Applier)

// WithFuzzyWindow sets the anchor drift tolerance in lines.
func WithFuzzyWindow(n int) Option {
	return func(a *Applier) {
		if n >= 0 {
			a.fuzzyWindow = n
		}
	}
}

// WithSyntaxChecker enables post-edit syntax validation.
func WithSyntaxChecker(c SyntaxChecker) Option {
	return func(a *Applier) { a.checker = c }
}

// WithIgnoreSyntaxErrors writes files even when syntax validation
// fails. The result still reports SyntaxValid = false.
func WithIgnoreSyntaxErrors() Option {
	return func(a *Applier) { a.ignoreSyntaxErrors = true }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(a *Applier) { a.log = l }
}

// NewApplier creates an applier resolving diff paths against root.
func NewApplier(root string, opts ...Option) *Applier {
	a := &Applier{
		root:        root,
		fuzzyWindow: DefaultFuzzyWindow,
		log:         logging.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// patchedFile is one file's pre- and post-patch content during an
// Apply call. Kept in a slice so write order is deterministic.
type patchedFile struct {
	relPath    string
	absPath    string
	oldContent string
	newContent string
	changed    bool
}

// Apply runs the three-phase application of a parsed diff.
//
// A file read failure aborts the whole call immediately; individual
// hunk mismatches are recorded and skipped. No file is written unless
// every gating phase passed.
func (a *Applier) Apply(ctx context.Context, diff *diffparse.ParsedDiff) *ApplyResult {
	result := &ApplyResult{
		RunID:       uuid.NewString(),
		SyntaxValid: true,
	}
	if diff == nil || diff.TotalHunks() == 0 {
		result.Error = "no hunks to apply"
		return result
	}

	log := a.log.With("run_id", result.RunID)

	// Phase 1: compute new content in memory.
	files, aborted := a.computePhase(diff, result, log)
	if aborted {
		return result
	}

	// Phase 2: syntax-validate the new content.
	if !a.validatePhase(ctx, files, result, log) {
		return result
	}

	// Phase 3: write every changed file, rolling back on failure.
	if !a.writePhase(files, result, log) {
		return result
	}

	// Partial application still counts as success: surviving hunks
	// landed on disk and the failed ones are itemized in FailedHunks.
	result.Success = result.HunksApplied > 0 && result.SyntaxValid
	log.Info("patch applied",
		"files", len(result.FilesModified),
		"hunks_applied", result.HunksApplied,
		"hunks_failed", result.HunksFailed,
		"success", result.Success)
	return result
}

// =============================================================================
// Phase 1: Compute
// =============================================================================

func (a *Applier) computePhase(diff *diffparse.ParsedDiff, result *ApplyResult, log *logging.Logger) ([]*patchedFile, bool) {
	var files []*patchedFile

	for _, fp := range diff.FilePatches {
		absPath := fp.FilePath
		if !filepath.IsAbs(absPath) {
			absPath = filepath.Join(a.root, fp.FilePath)
		}

		raw, err := os.ReadFile(absPath)
		if err != nil {
			result.Error = fmt.Sprintf("read %s: %v", fp.FilePath, err)
			log.Error("apply aborted on read failure", "path", fp.FilePath, "error", err)
			return nil, true
		}

		pf := &patchedFile{
			relPath:    fp.FilePath,
			absPath:    absPath,
			oldContent: string(raw),
		}

		lines, trailingNewline := splitLines(pf.oldContent)

		// Descending anchor order: edits near the bottom land first,
		// so they never shift the anchors of edits above them.
		hunks := make([]diffparse.DiffHunk, len(fp.Hunks))
		copy(hunks, fp.Hunks)
		sort.SliceStable(hunks, func(i, j int) bool {
			return hunks[i].LineNumber > hunks[j].LineNumber
		})

		for _, hunk := range hunks {
			newLines, reason := a.applyHunk(lines, hunk)
			if reason != "" {
				result.HunksFailed++
				result.FailedHunks = append(result.FailedHunks, FailedHunk{
					FilePath:   fp.FilePath,
					LineNumber: hunk.LineNumber,
					Reason:     reason,
				})
				log.Warn("hunk failed", "path", fp.FilePath, "line", hunk.LineNumber, "reason", reason)
				continue
			}
			lines = newLines
			result.HunksApplied++
		}

		pf.newContent = joinLines(lines, trailingNewline)
		pf.changed = pf.newContent != pf.oldContent
		files = append(files, pf)
	}
	return files, false
}

// applyHunk applies one hunk to lines, returning the new lines or a
// failure reason.
func (a *Applier) applyHunk(lines []string, hunk diffparse.DiffHunk) ([]string, string) {
	if hunk.IsInsertion() {
		idx := hunk.LineNumber - 1
		if idx < 0 || idx > len(lines) {
			return nil, fmt.Sprintf("insertion anchor %d outside file (%d lines)", hunk.LineNumber, len(lines))
		}
		out := make([]string, 0, len(lines)+len(hunk.ReplacementLines))
		out = append(out, lines[:idx]...)
		out = append(out, hunk.ReplacementLines...)
		out = append(out, lines[idx:]...)
		return out, ""
	}

	pos, ok := a.findAnchor(lines, hunk)
	if !ok {
		return nil, fmt.Sprintf("original content not found within %d lines of anchor %d",
			a.fuzzyWindow, hunk.LineNumber)
	}

	out := make([]string, 0, len(lines)-len(hunk.OriginalLines)+len(hunk.ReplacementLines))
	out = append(out, lines[:pos]...)
	out = append(out, hunk.ReplacementLines...)
	out = append(out, lines[pos+len(hunk.OriginalLines):]...)
	return out, ""
}

// findAnchor locates the hunk's original lines: exact anchor first,
// then probe offsets outward, closest first.
func (a *Applier) findAnchor(lines []string, hunk diffparse.DiffHunk) (int, bool) {
	base := hunk.LineNumber - 1
	if matchesAt(lines, base, hunk.OriginalLines) {
		return base, true
	}
	for off := 1; off <= a.fuzzyWindow; off++ {
		if matchesAt(lines, base+off, hunk.OriginalLines) {
			return base + off, true
		}
		if matchesAt(lines, base-off, hunk.OriginalLines) {
			return base - off, true
		}
	}
	return 0, false
}

// matchesAt reports whether want occurs at pos, trailing-whitespace
// insensitive.
func matchesAt(lines []string, pos int, want []string) bool {
	if pos < 0 || pos+len(want) > len(lines) {
		return false
	}
	for i, w := range want {
		if strings.TrimRight(lines[pos+i], " \t\r") != strings.TrimRight(w, " \t\r") {
			return false
		}
	}
	return true
}

// =============================================================================
// Phase 2: Validate
// =============================================================================

func (a *Applier) validatePhase(ctx context.Context, files []*patchedFile, result *ApplyResult, log *logging.Logger) bool {
	if a.checker == nil {
		return true
	}

	for _, pf := range files {
		if !pf.changed {
			continue
		}
		ok, err := a.checker.Check(ctx, pf.relPath, []byte(pf.newContent))
		if err != nil {
			result.SyntaxValid = false
			result.Error = fmt.Sprintf("syntax check %s: %v", pf.relPath, err)
			log.Error("syntax oracle failed", "path", pf.relPath, "error", err)
			return false
		}
		if !ok {
			result.SyntaxValid = false
			log.Warn("patched content fails syntax check", "path", pf.relPath)
			if !a.ignoreSyntaxErrors {
				result.Error = fmt.Sprintf("patched content of %s is not syntactically valid", pf.relPath)
				return false
			}
		}
	}
	return true
}

// =============================================================================
// Phase 3: Write
// =============================================================================

func (a *Applier) writePhase(files []*patchedFile, result *ApplyResult, log *logging.Logger) bool {
	var written []*patchedFile

	for _, pf := range files {
		if !pf.changed {
			continue
		}
		if err := safeWrite(pf.absPath, []byte(pf.newContent)); err != nil {
			result.Error = fmt.Sprintf("write %s: %v", pf.relPath, err)
			log.Error("write failed, rolling back", "path", pf.relPath, "error", err)
			a.rollback(written, log)
			result.FilesModified = nil
			return false
		}
		written = append(written, pf)
		result.FilesModified = append(result.FilesModified, pf.relPath)
	}
	return true
}

// rollback rewrites already-written files back to their pre-patch
// content, best effort. Rollback failures are logged, not returned,
// so they never mask the original error.
func (a *Applier) rollback(written []*patchedFile, log *logging.Logger) {
	for _, pf := range written {
		if err := safeWrite(pf.absPath, []byte(pf.oldContent)); err != nil {
			log.Error("rollback failed", "path", pf.relPath, "error", err)
		}
	}
}

// safeWrite writes content through a temp file in the same directory
// plus a rename, so a crash mid-write never leaves a half-written file
// visible under the original name.
func safeWrite(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".scalpel-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// =============================================================================
// Line Helpers
// =============================================================================

// splitLines splits content into lines, remembering whether it ended
// with a newline so joinLines can restore it byte-for-byte.
func splitLines(content string) ([]string, bool) {
	if content == "" {
		return nil, false
	}
	trailing := strings.HasSuffix(content, "\n")
	if trailing {
		content = strings.TrimSuffix(content, "\n")
	}
	return strings.Split(content, "\n"), trailing
}

func joinLines(lines []string, trailingNewline bool) string {
	out := strings.Join(lines, "\n")
	if trailingNewline && out != "" {
		out += "\n"
	}
	return out
}
