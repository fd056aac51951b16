// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package events provides the internal event bus for jarvisd. It is the
// wiring every other package uses instead of reaching into a sibling's
// internals: the Log Watcher publishes, the Correlator and Jarvis
// Controller subscribe, and nothing calls across package boundaries
// directly.
package events

import (
	"context"
	"time"
)

// Event represents an immutable event record.
type Event struct {
	ID        string                 `json:"id"`
	Version   string                 `json:"version"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	SessionID string                 `json:"sessionId,omitempty"`
	Payload   map[string]interface{} `json:"payload"`
}

// EventHandler processes received events.
type EventHandler func(ctx context.Context, event Event) error

// SubscriptionID uniquely identifies a subscription.
type SubscriptionID string

// EventFilter for querying event history.
type EventFilter struct {
	Types     []string  // Event types to match (supports wildcards)
	SessionID string    // Filter by session id
	Since     time.Time // Events after this time
	Until     time.Time // Events before this time
	Limit     int       // Maximum events to return
}

// EventBus is the core event pub/sub system.
type EventBus interface {
	// Publish emits an event to all matching subscribers.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a synchronous handler for events matching pattern.
	Subscribe(pattern string, handler EventHandler) (SubscriptionID, error)

	// SubscribeAsync registers an async handler with a buffered channel.
	SubscribeAsync(pattern string, handler EventHandler, bufferSize int) (SubscriptionID, error)

	// Unsubscribe removes a subscription.
	Unsubscribe(id SubscriptionID) error

	// History retrieves past events matching filter.
	History(filter EventFilter) ([]Event, error)

	// Close shuts down the event bus gracefully.
	Close() error
}

// Event types published by the Log Watcher (spec §4.3). All carry
// cliSessionId in the payload; correlationCandidate additionally carries
// messageId and parentMessageId.
const (
	EventLogSessionStart           = "logwatch.sessionStart"
	EventLogUserPromptSubmit       = "logwatch.userPromptSubmit"
	EventLogAssistantText          = "logwatch.assistantText"
	EventLogAssistantFirstResponse = "logwatch.assistantFirstResponse"
	EventLogCorrelationCandidate   = "logwatch.correlationCandidate"
	EventLogStop                   = "logwatch.stop"
)

// Event types published by the Correlator / Session Registry (spec §4.4, §4.5).
const (
	EventSessionCreated       = "session.created"
	EventSessionUpdated       = "session.updated"
	EventSessionDeleted       = "session.deleted"
	EventSessionJarvisUpdated = "session.jarvisUpdated"
	EventSessionStatusUpdate  = "session.statusUpdate" // payload: cliSessionId, status (loading|ready)
)

// Event types published by the PTY Multiplexer (spec §4.2).
const (
	EventTerminalOutput = "terminal.output" // payload: terminalId, bytes
	EventTerminalReady  = "terminal.ready"  // payload: terminalId
	EventTerminalExit   = "terminal.exit"   // payload: terminalId, code
)

// Event types published by the Jarvis Controller (spec §4.6).
const (
	EventTTS = "jarvis.tts" // payload: sessionId, text, timestamp, length
)
