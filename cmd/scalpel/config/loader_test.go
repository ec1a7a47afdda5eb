// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scalpel.yaml")

	require.NoError(t, loadFrom(path))

	// The file now exists and holds the defaults.
	_, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, 8, Global.Indexing.Workers)
	assert.Equal(t, 3, Global.Patching.FuzzyWindow)
	assert.True(t, Global.Patching.ValidateSyntax)
	assert.Equal(t, "info", Global.Logging.Level)
}

func TestLoadFromPartialConfigKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scalpel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("patching:\n  fuzzy_window: 5\n"), 0644))

	require.NoError(t, loadFrom(path))

	assert.Equal(t, 5, Global.Patching.FuzzyWindow)
	assert.Equal(t, 8, Global.Indexing.Workers, "unset sections fall back to defaults")
}

func TestLoadFromRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scalpel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("indexing: [not a map"), 0644))

	assert.Error(t, loadFrom(path))
}
