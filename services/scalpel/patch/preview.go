// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package patch

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/AleutianAI/scalpel/services/scalpel/diffparse"
)

// Preview renders a parsed diff as standard unified-diff text without
// touching any file, for display before Apply is committed to.
//
// Hunk headers account for the line drift earlier hunks in the same
// file introduce, so the output is a well-formed unified diff.
func Preview(parsed *diffparse.ParsedDiff) (string, error) {
	if parsed == nil || parsed.TotalHunks() == 0 {
		return "", diffparse.ErrEmptyDiff
	}

	var fileDiffs []*diff.FileDiff
	for _, fp := range parsed.FilePatches {
		hunks := make([]diffparse.DiffHunk, len(fp.Hunks))
		copy(hunks, fp.Hunks)
		sort.SliceStable(hunks, func(i, j int) bool {
			return hunks[i].LineNumber < hunks[j].LineNumber
		})

		fd := &diff.FileDiff{
			OrigName: "a/" + fp.FilePath,
			NewName:  "b/" + fp.FilePath,
		}

		drift := 0
		for _, h := range hunks {
			var body strings.Builder
			for _, line := range h.OriginalLines {
				fmt.Fprintf(&body, "-%s\n", line)
			}
			for _, line := range h.ReplacementLines {
				fmt.Fprintf(&body, "+%s\n", line)
			}

			origStart := h.LineNumber
			if len(h.OriginalLines) == 0 {
				// Unified-diff convention for pure insertions: the
				// original side references the preceding line.
				origStart = h.LineNumber - 1
			}

			fd.Hunks = append(fd.Hunks, &diff.Hunk{
				OrigStartLine: int32(origStart),
				OrigLines:     int32(len(h.OriginalLines)),
				NewStartLine:  int32(h.LineNumber + drift),
				NewLines:      int32(len(h.ReplacementLines)),
				Body:          []byte(body.String()),
			})
			drift += len(h.ReplacementLines) - len(h.OriginalLines)
		}
		fileDiffs = append(fileDiffs, fd)
	}

	out, err := diff.PrintMultiFileDiff(fileDiffs)
	if err != nil {
		return "", fmt.Errorf("render diff preview: %w", err)
	}
	return string(out), nil
}
