// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package telemetry

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/scalpel/pkg/logging"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	return NewRecorder(t.TempDir(), logging.New(logging.Config{Quiet: true}))
}

func TestRecordAndStats(t *testing.T) {
	r := newTestRecorder(t)

	entries := []EditEntry{
		{TargetFile: "a.py", ResolutionMethod: "graph_lookup", Confidence: 0.95,
			HunksApplied: 2, Success: true, SyntaxValid: true},
		{TargetFile: "b.py", ResolutionMethod: "semantic", Confidence: 0.75,
			HunksApplied: 1, HunksFailed: 1, Success: false, SyntaxValid: true},
		{TargetFile: "c.py", ResolutionMethod: "fallback", Confidence: 0,
			FallbackUsed: true, Success: true, SyntaxValid: true},
	}
	for _, e := range entries {
		require.NoError(t, r.Record(e))
	}

	stats, err := r.ReadStats(0)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Count)
	assert.InDelta(t, 2.0/3.0, stats.SuccessRate, 1e-9)
	assert.InDelta(t, 1.0/3.0, stats.FallbackRate, 1e-9)
	assert.InDelta(t, (0.95+0.75)/3.0, stats.AvgConfidence, 1e-9)
	assert.Equal(t, 3, stats.HunksApplied)
	assert.Equal(t, 1, stats.HunksFailed)
	assert.Equal(t, 1, stats.MethodCounts["graph_lookup"])
	assert.Equal(t, 1, stats.MethodCounts["semantic"])
}

func TestReadStatsLastN(t *testing.T) {
	r := newTestRecorder(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, r.Record(EditEntry{TargetFile: "a.py", Success: i >= 3}))
	}

	stats, err := r.ReadStats(2)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 1.0, stats.SuccessRate, "last two entries were both successes")
}

func TestReadStatsMissingLog(t *testing.T) {
	r := newTestRecorder(t)

	stats, err := r.ReadStats(10)
	require.NoError(t, err)
	assert.Zero(t, stats.Count)
}

func TestMalformedLineSkipped(t *testing.T) {
	r := newTestRecorder(t)
	require.NoError(t, r.Record(EditEntry{TargetFile: "a.py", Success: true}))

	f, err := os.OpenFile(r.Path(), os.O_WRONLY|os.O_APPEND, 0640)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, r.Record(EditEntry{TargetFile: "b.py", Success: true}))

	stats, err := r.ReadStats(0)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)
}

func TestTimestampDefaulted(t *testing.T) {
	r := newTestRecorder(t)
	require.NoError(t, r.Record(EditEntry{TargetFile: "a.py"}))

	data, err := os.ReadFile(r.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"timestamp":"20`)
}
