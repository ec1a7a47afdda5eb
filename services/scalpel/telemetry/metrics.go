// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry records per-edit metrics to an append-only JSONL
// log and computes rolling statistics over it.
//
// The log lives inside the project's .scalpel directory and is meant
// for offline inspection of how well scope resolution and patching
// behave on a given codebase, not for a metrics backend.
package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/AleutianAI/scalpel/pkg/logging"
)

// MetricsFileName is the log file name under the state directory.
const MetricsFileName = "edit_metrics.jsonl"

// EditEntry is one edit attempt's outcome.
type EditEntry struct {
	Timestamp time.Time `json:"timestamp"`

	// RunID ties the entry to an ApplyResult.
	RunID string `json:"run_id,omitempty"`

	TargetFile string `json:"target_file"`

	// ResolutionMethod and Confidence come from the resolved scope.
	ResolutionMethod string  `json:"resolution_method"`
	Confidence       float64 `json:"confidence"`
	FallbackUsed     bool    `json:"fallback_used"`

	HunksApplied int  `json:"hunks_applied"`
	HunksFailed  int  `json:"hunks_failed"`
	SyntaxValid  bool `json:"syntax_valid"`
	Success      bool `json:"success"`

	DurationMS int64 `json:"duration_ms,omitempty"`
}

// Stats summarizes the last N entries.
type Stats struct {
	Count         int            `json:"count"`
	SuccessRate   float64        `json:"success_rate"`
	FallbackRate  float64        `json:"fallback_rate"`
	AvgConfidence float64        `json:"avg_confidence"`
	HunksApplied  int            `json:"hunks_applied"`
	HunksFailed   int            `json:"hunks_failed"`
	MethodCounts  map[string]int `json:"method_counts"`
}

// Recorder appends edit entries to the JSONL log.
//
// # Thread Safety
//
// Safe for concurrent use; appends are serialized by a mutex.
type Recorder struct {
	path string
	log  *logging.Logger
	mu   sync.Mutex
}

// NewRecorder creates a recorder writing under stateDir (typically
// <project>/.scalpel).
func NewRecorder(stateDir string, log *logging.Logger) *Recorder {
	if log == nil {
		log = logging.Default()
	}
	return &Recorder{
		path: filepath.Join(stateDir, MetricsFileName),
		log:  log,
	}
}

// Path returns the metrics file location.
func (r *Recorder) Path() string { return r.path }

// Record appends one entry. A zero Timestamp is filled in with now.
func (r *Recorder) Record(entry EditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0750); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal metrics entry: %w", err)
	}

	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return fmt.Errorf("open metrics log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append metrics entry: %w", err)
	}
	return nil
}

// ReadStats computes rolling statistics over the last n entries
// (n <= 0 means all). A missing log yields zero-valued stats, not an
// error.
func (r *Recorder) ReadStats(n int) (Stats, error) {
	stats := Stats{MethodCounts: map[string]int{}}

	f, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return stats, fmt.Errorf("open metrics log: %w", err)
	}
	defer f.Close()

	var entries []EditEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry EditEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			// A torn or hand-edited line is skipped, not fatal.
			r.log.Warn("skipping malformed metrics line", "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read metrics log: %w", err)
	}

	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}

	stats.Count = len(entries)
	if stats.Count == 0 {
		return stats, nil
	}

	successes := 0
	fallbacks := 0
	confidenceSum := 0.0
	for _, e := range entries {
		if e.Success {
			successes++
		}
		if e.FallbackUsed {
			fallbacks++
		}
		confidenceSum += e.Confidence
		stats.HunksApplied += e.HunksApplied
		stats.HunksFailed += e.HunksFailed
		if e.ResolutionMethod != "" {
			stats.MethodCounts[e.ResolutionMethod]++
		}
	}
	stats.SuccessRate = float64(successes) / float64(stats.Count)
	stats.FallbackRate = float64(fallbacks) / float64(stats.Count)
	stats.AvgConfidence = confidenceSum / float64(stats.Count)
	return stats, nil
}
