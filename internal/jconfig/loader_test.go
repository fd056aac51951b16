// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package jconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "jarvisd.hjson")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := NewLoader().Load(path)
	require.NoError(t, err)
	return cfg
}

func TestLoader_Load_ValidConfig(t *testing.T) {
	cfg := loadFromString(t, `{
		server: {
			host: "0.0.0.0"
			port: 9000
		}
		paths: {
			logRoot: "/home/user/.claude/projects"
		}
	}`)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "/home/user/.claude/projects", cfg.Paths.LogRoot)
}

func TestLoader_Load_HJSONFeatures(t *testing.T) {
	// Comments, unquoted keys, and trailing commas are all valid HJSON.
	cfg := loadFromString(t, `{
		# this is a comment
		server: {
			port: 8710,
		}
	}`)
	assert.Equal(t, 8710, cfg.Server.Port)
}

func TestLoader_Load_AppliesDefaults(t *testing.T) {
	cfg := loadFromString(t, `{}`)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8710, cfg.Server.Port)
	assert.Equal(t, "jarvisd-store.json", cfg.Paths.StoreFile)
	assert.Equal(t, 8, cfg.Jarvis.ClearContextDelaySeconds)
	assert.Equal(t, 11, cfg.Jarvis.ExecutionPromptDelaySeconds)
}

func TestLoader_Load_MissingFile(t *testing.T) {
	_, err := NewLoader().Load(filepath.Join(t.TempDir(), "missing.hjson"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "info", cfg.Logging.Level)
}
