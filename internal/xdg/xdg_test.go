// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package xdg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDir_EnvVar(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	got, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/custom/config/authkit", got)
}

func TestConfigDir_Default(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/testuser")

	got, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/home/testuser/.config/authkit", got)
}

func TestDefaultConfigFile(t *testing.T) {
	t.Run("returns empty when file is absent", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())

		got, err := DefaultConfigFile()
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("returns path when file exists", func(t *testing.T) {
		base := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", base)
		dir := filepath.Join(base, "authkit")
		require.NoError(t, os.MkdirAll(dir, 0o700))
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("http:\n  addr: :8080\n"), 0o600))

		got, err := DefaultConfigFile()
		require.NoError(t, err)
		assert.Equal(t, path, got)
	})
}
