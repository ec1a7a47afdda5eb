// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package diffparse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const simpleDiff = `Here is the fix you asked for:

@@DIFF_START@@
FILE: app/util.py
<<<<<<< ORIGINAL (line 3)
def greet(name):
    return "hi " + name
=======
def greet(name: str) -> str:
    return f"hi {name}"
>>>>>>> UPDATED
@@DIFF_END@@

Let me know if anything else is needed.`

func TestParseSimpleDiff(t *testing.T) {
	parsed, err := Parse(simpleDiff)
	require.NoError(t, err)
	require.True(t, parsed.ParseSuccessful)
	require.Len(t, parsed.FilePatches, 1)

	fp := parsed.FilePatches[0]
	assert.Equal(t, "app/util.py", fp.FilePath)
	require.Len(t, fp.Hunks, 1)

	hunk := fp.Hunks[0]
	assert.Equal(t, 3, hunk.LineNumber)
	assert.Equal(t, []string{
		"def greet(name):",
		`    return "hi " + name`,
	}, hunk.OriginalLines)
	assert.Equal(t, []string{
		"def greet(name: str) -> str:",
		`    return f"hi {name}"`,
	}, hunk.ReplacementLines)
}

func TestParseNoDiff(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no sentinels", "I could not produce a diff for this change."},
		{"missing end sentinel", "@@DIFF_START@@\nFILE: a.py\n"},
		{"end before start", "@@DIFF_END@@ then @@DIFF_START@@"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			assert.ErrorIs(t, err, ErrNoDiff)
		})
	}
}

func TestParseEmptyDiff(t *testing.T) {
	_, err := Parse("@@DIFF_START@@\n\n\n@@DIFF_END@@")
	assert.ErrorIs(t, err, ErrEmptyDiff)
	assert.NotErrorIs(t, err, ErrNoDiff)
}

func TestParseMultiFile(t *testing.T) {
	text := `@@DIFF_START@@
FILE: a.py
<<<<<<< ORIGINAL (line 1)
old_a
=======
new_a
>>>>>>> UPDATED
FILE: b.py
<<<<<<< ORIGINAL (line 10)
old_b
=======
new_b
>>>>>>> UPDATED
@@DIFF_END@@`

	parsed, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, parsed.FilePatches, 2)
	assert.Equal(t, "a.py", parsed.FilePatches[0].FilePath)
	assert.Equal(t, "b.py", parsed.FilePatches[1].FilePath)
	assert.Equal(t, 10, parsed.FilePatches[1].Hunks[0].LineNumber)
}

func TestParseOptionalClosingMarker(t *testing.T) {
	text := `@@DIFF_START@@
FILE: a.py
<<<<<<< ORIGINAL (line 1)
first_old
=======
first_new
<<<<<<< ORIGINAL (line 5)
second_old
=======
second_new
@@DIFF_END@@`

	parsed, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, parsed.FilePatches, 1)
	hunks := parsed.FilePatches[0].Hunks
	require.Len(t, hunks, 2)

	// The first hunk's replacement stops at the next hunk marker; the
	// second extends to end of section.
	assert.Equal(t, []string{"first_new"}, hunks[0].ReplacementLines)
	assert.Equal(t, []string{"second_new"}, hunks[1].ReplacementLines)
}

func TestParseMissingSeparator(t *testing.T) {
	text := `@@DIFF_START@@
FILE: a.py
<<<<<<< ORIGINAL (line 1)
orphan line with no separator
@@DIFF_END@@`

	parsed, err := Parse(text)
	require.NoError(t, err)
	assert.False(t, parsed.ParseSuccessful)
	assert.Empty(t, parsed.FilePatches)
	assert.NotEmpty(t, parsed.Errors)
}

func TestParseDropsBadSectionKeepsGood(t *testing.T) {
	text := `@@DIFF_START@@
FILE: bad.py
no hunk markers here at all
FILE: good.py
<<<<<<< ORIGINAL (line 2)
old
=======
new
>>>>>>> UPDATED
@@DIFF_END@@`

	parsed, err := Parse(text)
	require.NoError(t, err)
	assert.True(t, parsed.ParseSuccessful)
	require.Len(t, parsed.FilePatches, 1)
	assert.Equal(t, "good.py", parsed.FilePatches[0].FilePath)
	assert.NotEmpty(t, parsed.Errors)
}

func TestParseBlankLineTrimming(t *testing.T) {
	text := "@@DIFF_START@@\nFILE: a.py\n<<<<<<< ORIGINAL (line 1)\n\nkeep\n\ninternal\n\n=======\n\nnew\n\n>>>>>>> UPDATED\n@@DIFF_END@@"

	parsed, err := Parse(text)
	require.NoError(t, err)
	hunk := parsed.FilePatches[0].Hunks[0]

	// Edges trimmed, internal blank preserved.
	assert.Equal(t, []string{"keep", "", "internal"}, hunk.OriginalLines)
	assert.Equal(t, []string{"new"}, hunk.ReplacementLines)
}

func TestHunkClassification(t *testing.T) {
	insertion := DiffHunk{LineNumber: 3, ReplacementLines: []string{"added"}}
	deletion := DiffHunk{LineNumber: 3, OriginalLines: []string{"removed"}}
	replacement := DiffHunk{LineNumber: 3, OriginalLines: []string{"a"}, ReplacementLines: []string{"b"}}

	assert.True(t, insertion.IsInsertion())
	assert.False(t, insertion.IsDeletion())

	assert.True(t, deletion.IsDeletion())
	assert.False(t, deletion.IsInsertion())

	assert.False(t, replacement.IsInsertion())
	assert.False(t, replacement.IsDeletion())
}

// =============================================================================
// Validation
// =============================================================================

func twoHunkDiff() *ParsedDiff {
	return &ParsedDiff{
		ParseSuccessful: true,
		FilePatches: []FilePatch{{
			FilePath: "a.py",
			Hunks: []DiffHunk{
				{LineNumber: 1, OriginalLines: []string{"line one"}, ReplacementLines: []string{"LINE ONE"}},
				{LineNumber: 3, OriginalLines: []string{"line three"}, ReplacementLines: []string{"LINE THREE"}},
			},
		}},
	}
}

func TestValidateAllValid(t *testing.T) {
	contents := map[string]string{"a.py": "line one\nline two\nline three"}

	validated, err := Validate(twoHunkDiff(), contents)
	require.NoError(t, err)
	assert.Equal(t, 2, validated.TotalHunks())
	assert.Empty(t, validated.Errors)
}

func TestValidateTrailingWhitespaceInsensitive(t *testing.T) {
	contents := map[string]string{"a.py": "line one   \nline two\nline three\t"}

	validated, err := Validate(twoHunkDiff(), contents)
	require.NoError(t, err)
	assert.Equal(t, 2, validated.TotalHunks())
}

func TestValidateDropsMinorityInvalid(t *testing.T) {
	// Hunk at line 3 no longer matches; 1 of 2 is not a majority.
	contents := map[string]string{"a.py": "line one\nline two\nsomething else"}

	validated, err := Validate(twoHunkDiff(), contents)
	require.NoError(t, err)
	require.Equal(t, 1, validated.TotalHunks())
	assert.Equal(t, 1, validated.FilePatches[0].Hunks[0].LineNumber)
	assert.NotEmpty(t, validated.Errors)
}

func TestValidateMajorityInvalidDiscardsDiff(t *testing.T) {
	contents := map[string]string{"a.py": "completely\ndifferent\ncontent"}

	_, err := Validate(twoHunkDiff(), contents)
	assert.ErrorIs(t, err, ErrMajorityInvalid)
}

func TestValidateInsertionAnchors(t *testing.T) {
	diff := &ParsedDiff{
		ParseSuccessful: true,
		FilePatches: []FilePatch{{
			FilePath: "a.py",
			Hunks: []DiffHunk{
				{LineNumber: 4, ReplacementLines: []string{"appended"}},
			},
		}},
	}
	contents := map[string]string{"a.py": "one\ntwo\nthree"}

	// length+1 is a valid append anchor.
	validated, err := Validate(diff, contents)
	require.NoError(t, err)
	assert.Equal(t, 1, validated.TotalHunks())

	// Beyond length+1 is not.
	diff.FilePatches[0].Hunks[0].LineNumber = 6
	_, err = Validate(diff, contents)
	assert.ErrorIs(t, err, ErrMajorityInvalid)
}

func TestValidateMissingFileContent(t *testing.T) {
	_, err := Validate(twoHunkDiff(), map[string]string{})
	assert.ErrorIs(t, err, ErrMajorityInvalid)
}

func TestValidateEmptyParse(t *testing.T) {
	_, err := Validate(&ParsedDiff{}, map[string]string{})
	assert.ErrorIs(t, err, ErrEmptyDiff)

	_, err = Validate(nil, nil)
	assert.ErrorIs(t, err, ErrEmptyDiff)
}

func TestParseRoundTripThroughStrings(t *testing.T) {
	// A replacement containing a line that looks like prose (not
	// markers) survives parsing untouched.
	text := strings.Join([]string{
		"@@DIFF_START@@",
		"FILE: doc.py",
		"<<<<<<< ORIGINAL (line 2)",
		"x = 1",
		"=======",
		"x = 2  # updated default",
		">>>>>>> UPDATED",
		"@@DIFF_END@@",
	}, "\n")

	parsed, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, []string{"x = 2  # updated default"}, parsed.FilePatches[0].Hunks[0].ReplacementLines)
}
