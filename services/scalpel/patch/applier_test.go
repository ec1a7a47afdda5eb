// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package patch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/scalpel/pkg/logging"
	"github.com/AleutianAI/scalpel/services/scalpel/diffparse"
)

func quietLogger() *logging.Logger {
	return logging.New(logging.Config{Quiet: true})
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0640))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func singleHunkDiff(file string, line int, orig, repl []string) *diffparse.ParsedDiff {
	return &diffparse.ParsedDiff{
		ParseSuccessful: true,
		FilePatches: []diffparse.FilePatch{{
			FilePath: file,
			Hunks: []diffparse.DiffHunk{{
				LineNumber:       line,
				OriginalLines:    orig,
				ReplacementLines: repl,
			}},
		}},
	}
}

func TestApplySimpleReplacement(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "main.py", "one\ntwo\nthree\n")

	a := NewApplier(root, WithLogger(quietLogger()))
	result := a.Apply(context.Background(),
		singleHunkDiff("main.py", 2, []string{"two"}, []string{"TWO"}))

	require.True(t, result.Success, "error: %s", result.Error)
	assert.Equal(t, 1, result.HunksApplied)
	assert.Zero(t, result.HunksFailed)
	assert.Equal(t, []string{"main.py"}, result.FilesModified)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "one\nTWO\nthree\n", readFile(t, path))
}

func TestApplyInsertionAndDeletion(t *testing.T) {
	root := t.TempDir()

	t.Run("insertion", func(t *testing.T) {
		path := writeFile(t, root, "ins.py", "a\nb\n")
		a := NewApplier(root, WithLogger(quietLogger()))

		result := a.Apply(context.Background(),
			singleHunkDiff("ins.py", 2, nil, []string{"inserted"}))

		require.True(t, result.Success)
		assert.Equal(t, "a\ninserted\nb\n", readFile(t, path))
	})

	t.Run("append at end", func(t *testing.T) {
		path := writeFile(t, root, "app.py", "a\nb\n")
		a := NewApplier(root, WithLogger(quietLogger()))

		result := a.Apply(context.Background(),
			singleHunkDiff("app.py", 3, nil, []string{"tail"}))

		require.True(t, result.Success)
		assert.Equal(t, "a\nb\ntail\n", readFile(t, path))
	})

	t.Run("deletion", func(t *testing.T) {
		path := writeFile(t, root, "del.py", "a\nb\nc\n")
		a := NewApplier(root, WithLogger(quietLogger()))

		result := a.Apply(context.Background(),
			singleHunkDiff("del.py", 2, []string{"b"}, nil))

		require.True(t, result.Success)
		assert.Equal(t, "a\nc\n", readFile(t, path))
	})
}

func TestBottomUpApplication(t *testing.T) {
	content := "l1\nl2\nl3\nl4\nl5\n"
	diff := &diffparse.ParsedDiff{
		ParseSuccessful: true,
		FilePatches: []diffparse.FilePatch{{
			FilePath: "multi.py",
			// Deliberately in ascending order; the applier must sort
			// descending so the first edit cannot shift the second.
			Hunks: []diffparse.DiffHunk{
				{LineNumber: 2, OriginalLines: []string{"l2"},
					ReplacementLines: []string{"l2a", "l2b"}},
				{LineNumber: 4, OriginalLines: []string{"l4"},
					ReplacementLines: []string{"L4"}},
			},
		}},
	}

	for _, order := range []string{"ascending", "descending"} {
		t.Run(order, func(t *testing.T) {
			root := t.TempDir()
			path := writeFile(t, root, "multi.py", content)

			d := *diff
			if order == "descending" {
				d.FilePatches = []diffparse.FilePatch{{
					FilePath: "multi.py",
					Hunks: []diffparse.DiffHunk{
						diff.FilePatches[0].Hunks[1],
						diff.FilePatches[0].Hunks[0],
					},
				}}
			}

			a := NewApplier(root, WithLogger(quietLogger()))
			result := a.Apply(context.Background(), &d)

			require.True(t, result.Success, "error: %s", result.Error)
			assert.Equal(t, 2, result.HunksApplied)
			assert.Equal(t, "l1\nl2a\nl2b\nl3\nL4\nl5\n", readFile(t, path))
		})
	}
}

func TestFuzzyWindow(t *testing.T) {
	// "target" really lives at line 4; hunks will claim line 3.
	content := "pad1\npad2\npad3\ntarget\npad5\n"

	t.Run("drift within window applies", func(t *testing.T) {
		root := t.TempDir()
		path := writeFile(t, root, "fuzzy.py", content)

		a := NewApplier(root, WithFuzzyWindow(3), WithLogger(quietLogger()))
		result := a.Apply(context.Background(),
			singleHunkDiff("fuzzy.py", 3, []string{"target"}, []string{"HIT"}))

		require.True(t, result.Success)
		assert.Equal(t, "pad1\npad2\npad3\nHIT\npad5\n", readFile(t, path))
	})

	t.Run("drift beyond window fails", func(t *testing.T) {
		far := strings.Repeat("pad\n", 13) + "target\n"
		root := t.TempDir()
		path := writeFile(t, root, "far.py", far)

		a := NewApplier(root, WithFuzzyWindow(3), WithLogger(quietLogger()))
		result := a.Apply(context.Background(),
			singleHunkDiff("far.py", 3, []string{"target"}, []string{"HIT"}))

		assert.False(t, result.Success)
		assert.Equal(t, 1, result.HunksFailed)
		require.Len(t, result.FailedHunks, 1)
		assert.Equal(t, 3, result.FailedHunks[0].LineNumber)
		assert.Equal(t, far, readFile(t, path), "failed hunk leaves the file alone")
	})
}

func TestPartialApplicationSucceeds(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "part.py", "alpha\nbeta\ngamma\n")

	diff := &diffparse.ParsedDiff{
		ParseSuccessful: true,
		FilePatches: []diffparse.FilePatch{{
			FilePath: "part.py",
			Hunks: []diffparse.DiffHunk{
				{LineNumber: 1, OriginalLines: []string{"alpha"}, ReplacementLines: []string{"ALPHA"}},
				{LineNumber: 2, OriginalLines: []string{"no such line"}, ReplacementLines: []string{"X"}},
			},
		}},
	}

	a := NewApplier(root, WithLogger(quietLogger()))
	result := a.Apply(context.Background(), diff)

	// The surviving hunk lands and the run still counts as a success;
	// the mismatch is itemized rather than failing the whole call.
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.HunksApplied)
	assert.Equal(t, 1, result.HunksFailed)
	require.Len(t, result.FailedHunks, 1)
	assert.Equal(t, 2, result.FailedHunks[0].LineNumber)
	assert.Equal(t, []string{"part.py"}, result.FilesModified)
	assert.Equal(t, "ALPHA\nbeta\ngamma\n", readFile(t, path))
}

func TestReadFailureAbortsImmediately(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "exists.py", "fine\n")

	diff := &diffparse.ParsedDiff{
		ParseSuccessful: true,
		FilePatches: []diffparse.FilePatch{
			{FilePath: "missing.py", Hunks: []diffparse.DiffHunk{
				{LineNumber: 1, OriginalLines: []string{"x"}, ReplacementLines: []string{"y"}},
			}},
			{FilePath: "exists.py", Hunks: []diffparse.DiffHunk{
				{LineNumber: 1, OriginalLines: []string{"fine"}, ReplacementLines: []string{"changed"}},
			}},
		},
	}

	a := NewApplier(root, WithLogger(quietLogger()))
	result := a.Apply(context.Background(), diff)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "missing.py")
	assert.Zero(t, result.HunksApplied)
	assert.Equal(t, "fine\n", readFile(t, filepath.Join(root, "exists.py")))
}

// mapChecker fails the paths listed in bad.
type mapChecker struct {
	bad map[string]bool
}

func (c mapChecker) Check(_ context.Context, path string, _ []byte) (bool, error) {
	return !c.bad[path], nil
}

func TestTransactionalMultiFileApply(t *testing.T) {
	root := t.TempDir()
	path1 := writeFile(t, root, "one.py", "alpha\n")
	path2 := writeFile(t, root, "two.py", "beta\n")

	diff := &diffparse.ParsedDiff{
		ParseSuccessful: true,
		FilePatches: []diffparse.FilePatch{
			{FilePath: "one.py", Hunks: []diffparse.DiffHunk{
				{LineNumber: 1, OriginalLines: []string{"alpha"}, ReplacementLines: []string{"ALPHA"}},
			}},
			{FilePath: "two.py", Hunks: []diffparse.DiffHunk{
				{LineNumber: 1, OriginalLines: []string{"beta"}, ReplacementLines: []string{"BETA"}},
			}},
		},
	}

	a := NewApplier(root,
		WithSyntaxChecker(mapChecker{bad: map[string]bool{"two.py": true}}),
		WithLogger(quietLogger()))
	result := a.Apply(context.Background(), diff)

	assert.False(t, result.Success)
	assert.False(t, result.SyntaxValid)
	assert.Empty(t, result.FilesModified)

	// Neither file was touched: validation gates the write phase.
	assert.Equal(t, "alpha\n", readFile(t, path1))
	assert.Equal(t, "beta\n", readFile(t, path2))
}

func TestIgnoreSyntaxErrorsStillWrites(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "one.py", "alpha\n")

	a := NewApplier(root,
		WithSyntaxChecker(mapChecker{bad: map[string]bool{"one.py": true}}),
		WithIgnoreSyntaxErrors(),
		WithLogger(quietLogger()))
	result := a.Apply(context.Background(),
		singleHunkDiff("one.py", 1, []string{"alpha"}, []string{"ALPHA"}))

	assert.False(t, result.Success, "syntax still reported invalid")
	assert.False(t, result.SyntaxValid)
	assert.Equal(t, []string{"one.py"}, result.FilesModified)
	assert.Equal(t, "ALPHA\n", readFile(t, path))
}

func TestApplyEmptyDiff(t *testing.T) {
	a := NewApplier(t.TempDir(), WithLogger(quietLogger()))

	result := a.Apply(context.Background(), nil)
	assert.False(t, result.Success)

	result = a.Apply(context.Background(), &diffparse.ParsedDiff{})
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestTrailingWhitespaceTolerantMatch(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "ws.py", "value = 1   \n")

	a := NewApplier(root, WithLogger(quietLogger()))
	result := a.Apply(context.Background(),
		singleHunkDiff("ws.py", 1, []string{"value = 1"}, []string{"value = 2"}))

	require.True(t, result.Success)
	assert.Equal(t, "value = 2\n", readFile(t, path))
}

func TestPreview(t *testing.T) {
	parsed := &diffparse.ParsedDiff{
		ParseSuccessful: true,
		FilePatches: []diffparse.FilePatch{{
			FilePath: "app/util.py",
			Hunks: []diffparse.DiffHunk{
				{LineNumber: 2, OriginalLines: []string{"old line"},
					ReplacementLines: []string{"new line one", "new line two"}},
				{LineNumber: 7, OriginalLines: []string{"seven"},
					ReplacementLines: []string{"SEVEN"}},
			},
		}},
	}

	out, err := Preview(parsed)
	require.NoError(t, err)

	assert.Contains(t, out, "--- a/app/util.py")
	assert.Contains(t, out, "+++ b/app/util.py")
	assert.Contains(t, out, "-old line")
	assert.Contains(t, out, "+new line one")
	// The second hunk's new-side start accounts for the first hunk's
	// one-line growth.
	assert.Contains(t, out, "@@ -7,1 +8,1 @@")
}

func TestPreviewEmpty(t *testing.T) {
	_, err := Preview(nil)
	assert.ErrorIs(t, err, diffparse.ErrEmptyDiff)
}
