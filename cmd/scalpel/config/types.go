// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

// ScalpelConfig is the user-level configuration, stored at
// ~/.scalpel/scalpel.yaml.
type ScalpelConfig struct {
	// Indexing controls project walking and extraction.
	Indexing IndexingConfig `yaml:"indexing"`

	// Patching controls diff application.
	Patching PatchingConfig `yaml:"patching"`

	// Logging controls the CLI logger.
	Logging LoggingConfig `yaml:"logging"`
}

type IndexingConfig struct {
	// Workers bounds concurrent extraction goroutines.
	Workers int `yaml:"workers"` // e.g. 8

	// WatchDebounceMS batches rapid file events before re-indexing.
	WatchDebounceMS int `yaml:"watch_debounce_ms"` // e.g. 500
}

type PatchingConfig struct {
	// FuzzyWindow is the hunk anchor drift tolerance in lines.
	FuzzyWindow int `yaml:"fuzzy_window"` // e.g. 3

	// ValidateSyntax gates writes on a tree-sitter parse of the new
	// content.
	ValidateSyntax bool `yaml:"validate_syntax"`
}

type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Dir enables file logging when set.
	Dir string `yaml:"dir,omitempty"`

	// JSON switches stderr output to JSON.
	JSON bool `yaml:"json"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() ScalpelConfig {
	return ScalpelConfig{
		Indexing: IndexingConfig{
			Workers:         8,
			WatchDebounceMS: 500,
		},
		Patching: PatchingConfig{
			FuzzyWindow:    3,
			ValidateSyntax: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
