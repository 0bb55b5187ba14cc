// ABOUTME: Tests for module profile loading and seeding
// ABOUTME: Covers built-ins, TOML parsing, overrides, and error cases

package modules

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morphlabs/morph-gateway/internal/store"
)

func TestBuiltin(t *testing.T) {
	profiles := Builtin()
	require.NotEmpty(t, profiles)

	names := make(map[string]bool)
	for _, profile := range profiles {
		assert.NotEmpty(t, profile.Name)
		assert.NotEmpty(t, profile.Title)
		assert.False(t, names[profile.Name], "duplicate builtin name %s", profile.Name)
		names[profile.Name] = true
	}
	assert.True(t, names["physics"])
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	content := `
[[module]]
name = "astro"
title = "Astro Navigator"
tags = ["Orbits", "Telescopes"]
prompt = "You teach astronomy with simulations."

[[module]]
name = "chem"
title = "Chem Bench"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "science.toml"), []byte(content), 0644))
	// Non-TOML files are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("notes"), 0644))

	profiles, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "astro", profiles[0].Name)
	assert.Equal(t, []string{"Orbits", "Telescopes"}, profiles[0].Tags)
	assert.Equal(t, "You teach astronomy with simulations.", profiles[0].Prompt)
	assert.Equal(t, "chem", profiles[1].Name)
}

func TestLoadDir_Missing(t *testing.T) {
	profiles, err := LoadDir("/nonexistent/modules")
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestLoadDir_MissingName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.toml"), []byte(`
[[module]]
title = "No Name"
`), 0644))

	_, err := LoadDir(dir)
	assert.ErrorContains(t, err, "missing name")
}

func TestSeed(t *testing.T) {
	mock := store.NewMockStore()
	ctx := context.Background()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "override.toml"), []byte(`
[[module]]
name = "physics"
title = "Physics Engine Pro"
prompt = "Custom physics prompt."
`), 0644))

	require.NoError(t, Seed(ctx, mock, dir, nil))

	// All builtins present
	for _, profile := range Builtin() {
		_, err := mock.GetModuleByName(ctx, profile.Name)
		assert.NoError(t, err, "builtin %s not seeded", profile.Name)
	}

	// Directory profile overrides the builtin with the same name
	physics, err := mock.GetModuleByName(ctx, "physics")
	require.NoError(t, err)
	assert.Equal(t, "Physics Engine Pro", physics.Title)
	assert.Equal(t, "Custom physics prompt.", physics.Prompt)
}
