// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diffparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// originalMarkerPattern matches the hunk opener and captures its
// 1-indexed anchor line.
var originalMarkerPattern = regexp.MustCompile(`^<{7}\s+ORIGINAL\s+\(line\s+(\d+)\)\s*$`)

// Parse extracts the structured diff from free-form model output.
//
// # Description
//
// The text may contain prose around the diff block; only the content
// between the first sentinel pair is parsed. A file section yielding
// zero valid hunks is dropped with a recorded error but does not abort
// the parse.
//
// # Outputs
//
//   - *ParsedDiff: structured hunks per file.
//   - error: ErrNoDiff when a sentinel is missing, ErrEmptyDiff when
//     the block is blank. Both mean "fall back to whole-file editing".
func Parse(text string) (*ParsedDiff, error) {
	start := strings.Index(text, DiffStart)
	if start < 0 {
		return nil, ErrNoDiff
	}
	rest := text[start+len(DiffStart):]
	end := strings.Index(rest, DiffEnd)
	if end < 0 {
		return nil, ErrNoDiff
	}

	block := strings.TrimSpace(rest[:end])
	if block == "" {
		return nil, ErrEmptyDiff
	}

	parsed := &ParsedDiff{}
	lines := strings.Split(block, "\n")

	// Split the block into file sections first, then parse each.
	type section struct {
		path  string
		lines []string
	}
	var sections []section
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, fileMarker) {
			path := strings.TrimSpace(strings.TrimPrefix(trimmed, fileMarker))
			sections = append(sections, section{path: path})
			continue
		}
		if len(sections) == 0 {
			continue
		}
		sections[len(sections)-1].lines = append(sections[len(sections)-1].lines, line)
	}

	if len(sections) == 0 {
		parsed.Errors = append(parsed.Errors, "diff block contains no FILE sections")
		return parsed, nil
	}

	for _, sec := range sections {
		if sec.path == "" {
			parsed.Errors = append(parsed.Errors, "FILE marker with empty path skipped")
			continue
		}
		hunks, errs := parseHunks(sec.lines)
		parsed.Errors = append(parsed.Errors, errs...)
		if len(hunks) == 0 {
			parsed.Errors = append(parsed.Errors,
				fmt.Sprintf("file section %s produced no valid hunks", sec.path))
			continue
		}
		parsed.FilePatches = append(parsed.FilePatches, FilePatch{
			FilePath: sec.path,
			Hunks:    hunks,
		})
	}

	parsed.ParseSuccessful = len(parsed.FilePatches) > 0
	return parsed, nil
}

// parseHunks walks one file section's lines collecting hunks.
func parseHunks(lines []string) ([]DiffHunk, []string) {
	var hunks []DiffHunk
	var errs []string

	i := 0
	for i < len(lines) {
		m := originalMarkerPattern.FindStringSubmatch(strings.TrimSpace(lines[i]))
		if m == nil {
			i++
			continue
		}
		anchor, err := strconv.Atoi(m[1])
		if err != nil || anchor < 1 {
			errs = append(errs, fmt.Sprintf("hunk with invalid anchor line %q skipped", m[1]))
			i++
			continue
		}
		i++

		// Original half runs until the separator.
		var original []string
		foundSep := false
		for i < len(lines) {
			if strings.TrimSpace(lines[i]) == separatorMarker {
				foundSep = true
				i++
				break
			}
			if originalMarkerPattern.MatchString(strings.TrimSpace(lines[i])) {
				break
			}
			original = append(original, lines[i])
			i++
		}
		if !foundSep {
			errs = append(errs, fmt.Sprintf("hunk at line %d missing ======= separator", anchor))
			continue
		}

		// Replacement half runs until the closing marker or, when the
		// marker is omitted, the next hunk or end of section.
		var replacement []string
		for i < len(lines) {
			trimmed := strings.TrimSpace(lines[i])
			if trimmed == updatedMarker {
				i++
				break
			}
			if originalMarkerPattern.MatchString(trimmed) {
				break
			}
			replacement = append(replacement, lines[i])
			i++
		}

		hunks = append(hunks, DiffHunk{
			LineNumber:       anchor,
			OriginalLines:    trimBlankEdges(original),
			ReplacementLines: trimBlankEdges(replacement),
		})
	}
	return hunks, errs
}

// trimBlankEdges removes leading and trailing blank lines, preserving
// internal ones.
func trimBlankEdges(lines []string) []string {
	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	end := len(lines)
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	if start == end {
		return nil
	}
	return lines[start:end]
}

// Validate checks every hunk's original lines against real file
// content, dropping hunks that no longer match.
//
// # Description
//
// Insertions are valid iff the anchor falls within [1, length+1].
// Non-insertions require an exact line-for-line match at the anchor,
// insensitive to trailing whitespace. If more than half of all hunks
// across the whole diff fail, the entire diff is discarded and
// ErrMajorityInvalid is returned - applying a mostly-wrong diff is
// worse than falling back.
//
// # Inputs
//
//   - parsed: the diff to validate.
//   - fileContents: current content per file path; a file missing from
//     the map fails all of its hunks.
func Validate(parsed *ParsedDiff, fileContents map[string]string) (*ParsedDiff, error) {
	if parsed == nil || parsed.TotalHunks() == 0 {
		return nil, ErrEmptyDiff
	}

	out := &ParsedDiff{ParseSuccessful: true}
	total := 0
	invalid := 0

	for _, fp := range parsed.FilePatches {
		content, haveFile := fileContents[fp.FilePath]
		var fileLines []string
		if haveFile {
			fileLines = strings.Split(content, "\n")
		}

		var valid []DiffHunk
		for _, hunk := range fp.Hunks {
			total++
			if !haveFile {
				invalid++
				out.Errors = append(out.Errors,
					fmt.Sprintf("%s: no content available for validation", fp.FilePath))
				continue
			}
			if reason := checkHunk(hunk, fileLines); reason != "" {
				invalid++
				out.Errors = append(out.Errors,
					fmt.Sprintf("%s line %d: %s", fp.FilePath, hunk.LineNumber, reason))
				continue
			}
			valid = append(valid, hunk)
		}
		if len(valid) > 0 {
			out.FilePatches = append(out.FilePatches, FilePatch{
				FilePath: fp.FilePath,
				Hunks:    valid,
			})
		}
	}

	if invalid*2 > total {
		return nil, fmt.Errorf("%w: %d of %d hunks failed validation", ErrMajorityInvalid, invalid, total)
	}
	if len(out.FilePatches) == 0 {
		return nil, fmt.Errorf("%w: no hunks survived validation", ErrMajorityInvalid)
	}
	return out, nil
}

// checkHunk returns a failure reason, or "" when the hunk matches.
func checkHunk(hunk DiffHunk, fileLines []string) string {
	if hunk.IsInsertion() {
		if hunk.LineNumber > len(fileLines)+1 {
			return fmt.Sprintf("insertion anchor beyond end of file (%d lines)", len(fileLines))
		}
		return ""
	}

	start := hunk.LineNumber - 1
	if start < 0 || start+len(hunk.OriginalLines) > len(fileLines) {
		return "original lines extend past end of file"
	}
	for i, want := range hunk.OriginalLines {
		got := fileLines[start+i]
		if strings.TrimRight(got, " \t\r") != strings.TrimRight(want, " \t\r") {
			return fmt.Sprintf("content mismatch at line %d", hunk.LineNumber+i)
		}
	}
	return ""
}
