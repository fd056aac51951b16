// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package jconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hjson/hjson-go/v4"
)

// Loader reads the daemon's HJSON configuration file.
type Loader struct{}

// NewLoader constructs a Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the configuration at path, applying defaults for
// any field the file leaves unset.
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var raw map[string]interface{}
	if err := hjson.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse hjson: %w", err)
	}

	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert to json: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// FindConfig looks for jarvisd.hjson then jarvisd.json in the current directory.
func (l *Loader) FindConfig() (string, error) {
	for _, name := range []string{"jarvisd.hjson", "jarvisd.json"} {
		path := filepath.Join(".", name)
		if _, err := os.Stat(path); err == nil {
			abs, err := filepath.Abs(path)
			if err != nil {
				return path, nil
			}
			return abs, nil
		}
	}
	return "", fmt.Errorf("config file not found (looked for jarvisd.hjson, jarvisd.json)")
}

// Default returns a Config with every field set to its default value, for
// callers running without a config file on disk.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}
