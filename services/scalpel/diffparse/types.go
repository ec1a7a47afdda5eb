// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diffparse converts the delimited diff format produced by a
// language model into structured, validatable hunks.
//
// # Diff Format
//
// A diff is one block bounded by @@DIFF_START@@ and @@DIFF_END@@
// sentinels. Inside, sections begin with "FILE: <path>" and each hunk
// looks like:
//
//	<<<<<<< ORIGINAL (line 42)
//	old line one
//	old line two
//	=======
//	new line one
//	>>>>>>> UPDATED
//
// The closing marker is optional on the last hunk of a section.
// Malformed input degrades to "no usable diff" values rather than
// panics, so callers can uniformly fall back to whole-file editing.
package diffparse

import "errors"

// Diff text sentinels and markers.
const (
	DiffStart = "@@DIFF_START@@"
	DiffEnd   = "@@DIFF_END@@"

	fileMarker      = "FILE:"
	separatorMarker = "======="
	updatedMarker   = ">>>>>>> UPDATED"
)

// Sentinel errors for diff parsing and validation.
var (
	// ErrNoDiff is returned when the input has no complete sentinel
	// pair at all.
	ErrNoDiff = errors.New("no diff block found")

	// ErrEmptyDiff is returned when the sentinels are present but the
	// block between them is empty.
	ErrEmptyDiff = errors.New("diff block is empty")

	// ErrMajorityInvalid is returned by Validate when more than half
	// of all hunks fail content validation.
	ErrMajorityInvalid = errors.New("majority of hunks invalid")
)

// DiffHunk is one localized original→replacement edit.
type DiffHunk struct {
	// LineNumber is the 1-indexed anchor where OriginalLines are
	// expected to start.
	LineNumber int `json:"line_number"`

	OriginalLines    []string `json:"original_lines"`
	ReplacementLines []string `json:"replacement_lines"`
}

// IsInsertion reports whether the hunk adds lines without replacing
// any.
func (h *DiffHunk) IsInsertion() bool { return len(h.OriginalLines) == 0 }

// IsDeletion reports whether the hunk removes lines without adding
// any.
func (h *DiffHunk) IsDeletion() bool { return len(h.ReplacementLines) == 0 }

// FilePatch is the ordered list of hunks for one file.
type FilePatch struct {
	FilePath string     `json:"file_path"`
	Hunks    []DiffHunk `json:"hunks"`
}

// ParsedDiff is the structured result of parsing one diff block.
type ParsedDiff struct {
	FilePatches []FilePatch `json:"file_patches"`

	// ParseSuccessful is false when every file section was dropped.
	ParseSuccessful bool `json:"parse_successful"`

	// Errors holds human-readable descriptions of anything skipped.
	Errors []string `json:"errors,omitempty"`
}

// TotalHunks counts hunks across all file patches.
func (d *ParsedDiff) TotalHunks() int {
	n := 0
	for _, fp := range d.FilePatches {
		n += len(fp.Hunks)
	}
	return n
}
