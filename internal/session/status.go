// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"log"

	"github.com/jarvis-mode/jarvisd/internal/events"
	"github.com/jarvis-mode/jarvisd/internal/store"
)

// Status values for sessionStatusUpdate, per spec.md §6.
const (
	StatusLoading = "loading"
	StatusReady   = "ready"
)

// StatusBroadcaster turns the Log Watcher's raw userPromptSubmit/stop events
// into the live "thinking" vs "ready" status spec.md §1 names as the
// system's core purpose, scoped to whichever Session the cliSessionId
// currently correlates to. It is independent of Jarvis Mode: every session
// gets a status, not just ones cycling through planning/execution.
type StatusBroadcaster struct {
	store *store.Store
	bus   events.EventBus
}

// NewStatusBroadcaster constructs a StatusBroadcaster. Call Start to
// subscribe to the event bus.
func NewStatusBroadcaster(st *store.Store, bus events.EventBus) *StatusBroadcaster {
	return &StatusBroadcaster{store: st, bus: bus}
}

// Start subscribes to the Log Watcher's userPromptSubmit and stop events.
func (b *StatusBroadcaster) Start() error {
	if _, err := b.bus.Subscribe(events.EventLogUserPromptSubmit, b.handleLoading); err != nil {
		return err
	}
	if _, err := b.bus.Subscribe(events.EventLogStop, b.handleReady); err != nil {
		return err
	}
	return nil
}

func (b *StatusBroadcaster) handleLoading(ctx context.Context, e events.Event) error {
	return b.broadcast(ctx, e, StatusLoading)
}

func (b *StatusBroadcaster) handleReady(ctx context.Context, e events.Event) error {
	return b.broadcast(ctx, e, StatusReady)
}

func (b *StatusBroadcaster) broadcast(ctx context.Context, e events.Event, status string) error {
	cliSessionID, _ := e.Payload["cliSessionId"].(string)
	if cliSessionID == "" {
		return nil
	}

	sess, err := b.store.FindSessionByCLISessionID(cliSessionID)
	if err != nil {
		// Not yet (or no longer) correlated to a tracked Session; nothing to
		// report status for.
		return nil
	}

	if err := b.bus.Publish(ctx, events.Event{
		Type:      events.EventSessionStatusUpdate,
		SessionID: sess.ID,
		Payload: map[string]interface{}{
			"cliSessionId": cliSessionID,
			"status":       status,
		},
	}); err != nil {
		log.Printf("session: publish status %s for %s: %v", status, sess.ID, err)
		return err
	}
	return nil
}
