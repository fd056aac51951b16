// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import "time"

// Session mirrors internal/store.Session, the orchestrator's view of one
// managed CLI session.
//
// See [Client.Sessions] for operations on sessions.
type Session struct {
	// ID is the unique session identifier.
	ID string `json:"id"`

	// Name is the human-readable session name.
	Name string `json:"name"`

	// Created is when the session was allocated.
	Created time.Time `json:"created"`

	// TerminalID is the PTY Multiplexer terminal backing this session.
	TerminalID string `json:"terminalId"`

	// ProjectPath is the working directory the session's shell was started in.
	ProjectPath string `json:"projectPath"`

	// CLISessionID is the AI CLI's own session id once correlated, empty
	// until the Correlator links this session to a log file.
	CLISessionID string `json:"cliSessionId,omitempty"`

	// LastMessageID is the most recent assistant message id seen for this
	// session, used as the correlation cursor.
	LastMessageID string `json:"lastMessageId,omitempty"`

	// JarvisMode indicates whether Jarvis Mode is enabled for this session.
	JarvisMode bool `json:"jarvisMode"`

	// Mode is the current planning/execution state ("" when unset,
	// "planning", "execution").
	Mode string `json:"mode"`

	// Plan is the accumulated plan text captured during the planning phase.
	Plan string `json:"plan,omitempty"`

	// LastAssistantText is the most recent assistant message text observed.
	LastAssistantText string `json:"lastAssistantText,omitempty"`

	// ClaudePID is the process id of the CLI child, when known.
	ClaudePID int `json:"claudePid,omitempty"`

	// LastUpdated is when this session's row was last modified.
	LastUpdated time.Time `json:"lastUpdated"`
}

// DeleteResult mirrors internal/session.DeleteResult, describing which
// parts of a session's state were actually torn down.
type DeleteResult struct {
	SessionRowRemoved  bool `json:"sessionRowRemoved"`
	TerminalKilled     bool `json:"terminalKilled"`
	CorrelationCleared bool `json:"correlationCleared"`
}

// Event mirrors internal/events.Event, one entry from the event bus's
// bounded history.
type Event struct {
	// ID is the unique event identifier.
	ID string `json:"id"`

	// Version is the event schema version.
	Version string `json:"version"`

	// Type identifies the kind of event (e.g., "session.created",
	// "logwatch.assistantText").
	Type string `json:"type"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// SessionID is the session this event concerns, when applicable.
	SessionID string `json:"sessionId,omitempty"`

	// Payload contains event-specific data.
	Payload map[string]interface{} `json:"payload"`
}
