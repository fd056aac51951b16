// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package jconfig is the daemon's HJSON-backed configuration, grounded on
// the teacher's internal/config package (Loader.Load: HJSON -> map ->
// JSON -> typed struct, plus applyDefaults).
package jconfig

// Config is the top-level daemon configuration.
type Config struct {
	Server  ServerConfig  `json:"server"`
	Paths   PathsConfig   `json:"paths"`
	Events  EventsConfig  `json:"events"`
	Jarvis  JarvisConfig  `json:"jarvis"`
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig controls the HTTP/WebSocket listener.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// PathsConfig locates the filesystem state this daemon owns.
type PathsConfig struct {
	// LogRoot is the AI CLI's per-project log tree, e.g. ~/.claude/projects.
	LogRoot string `json:"logRoot"`
	// StoreFile is the sessions/correlation store.
	StoreFile string `json:"storeFile"`
	// ExecutionMappingFile is the planning→execution continuation bridge.
	ExecutionMappingFile string `json:"executionMappingFile"`
	// Shell is the login shell the PTY Multiplexer launches.
	Shell string `json:"shell"`
}

// EventsConfig controls the in-memory event bus.
type EventsConfig struct {
	HistoryMaxEvents int `json:"historyMaxEvents"`
}

// JarvisConfig controls the planning/execution timing constants.
type JarvisConfig struct {
	ClearContextDelaySeconds    int `json:"clearContextDelaySeconds"`
	ExecutionPromptDelaySeconds int `json:"executionPromptDelaySeconds"`
	PostStopDelaySeconds        int `json:"postStopDelaySeconds"`
}

// LoggingConfig controls the daemon's own log output.
type LoggingConfig struct {
	Level string `json:"level"` // debug, info, warn, error
}

// applyDefaults fills in zero-valued fields with the daemon's defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8710
	}
	if cfg.Paths.StoreFile == "" {
		cfg.Paths.StoreFile = "jarvisd-store.json"
	}
	if cfg.Paths.ExecutionMappingFile == "" {
		cfg.Paths.ExecutionMappingFile = "jarvisd-execution.json"
	}
	if cfg.Paths.Shell == "" {
		cfg.Paths.Shell = "/bin/sh"
	}
	if cfg.Events.HistoryMaxEvents == 0 {
		cfg.Events.HistoryMaxEvents = 10000
	}
	if cfg.Jarvis.ClearContextDelaySeconds == 0 {
		cfg.Jarvis.ClearContextDelaySeconds = 8
	}
	if cfg.Jarvis.ExecutionPromptDelaySeconds == 0 {
		cfg.Jarvis.ExecutionPromptDelaySeconds = 11
	}
	if cfg.Jarvis.PostStopDelaySeconds == 0 {
		cfg.Jarvis.PostStopDelaySeconds = 2
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
