// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jarvis-mode/jarvisd/internal/events"
)

func TestStatusBroadcaster_UserPromptSubmit_BroadcastsLoading(t *testing.T) {
	reg, st, _, bus := newTestRegistry(t)

	sess, err := reg.CreateSession(context.Background(), "S1", "/proj")
	require.NoError(t, err)
	_, err = reg.LinkCli(context.Background(), sess.ID, "cli-1", "m1")
	require.NoError(t, err)

	var received events.Event
	_, err = bus.Subscribe(events.EventSessionStatusUpdate, func(ctx context.Context, e events.Event) error {
		received = e
		return nil
	})
	require.NoError(t, err)

	b := NewStatusBroadcaster(st, bus)
	require.NoError(t, b.Start())

	require.NoError(t, bus.Publish(context.Background(), events.Event{
		Type:    events.EventLogUserPromptSubmit,
		Payload: map[string]interface{}{"cliSessionId": "cli-1"},
	}))

	assert.Equal(t, events.EventSessionStatusUpdate, received.Type)
	assert.Equal(t, sess.ID, received.SessionID)
	assert.Equal(t, StatusLoading, received.Payload["status"])
	assert.Equal(t, "cli-1", received.Payload["cliSessionId"])
}

func TestStatusBroadcaster_Stop_BroadcastsReady(t *testing.T) {
	reg, st, _, bus := newTestRegistry(t)

	sess, err := reg.CreateSession(context.Background(), "S1", "/proj")
	require.NoError(t, err)
	_, err = reg.LinkCli(context.Background(), sess.ID, "cli-1", "m1")
	require.NoError(t, err)

	var received events.Event
	_, err = bus.Subscribe(events.EventSessionStatusUpdate, func(ctx context.Context, e events.Event) error {
		received = e
		return nil
	})
	require.NoError(t, err)

	b := NewStatusBroadcaster(st, bus)
	require.NoError(t, b.Start())

	require.NoError(t, bus.Publish(context.Background(), events.Event{
		Type:    events.EventLogStop,
		Payload: map[string]interface{}{"cliSessionId": "cli-1"},
	}))

	assert.Equal(t, events.EventSessionStatusUpdate, received.Type)
	assert.Equal(t, sess.ID, received.SessionID)
	assert.Equal(t, StatusReady, received.Payload["status"])
}

func TestStatusBroadcaster_UnknownCliSession_Ignored(t *testing.T) {
	_, st, _, bus := newTestRegistry(t)

	var received events.Event
	_, err := bus.Subscribe(events.EventSessionStatusUpdate, func(ctx context.Context, e events.Event) error {
		received = e
		return nil
	})
	require.NoError(t, err)

	b := NewStatusBroadcaster(st, bus)
	require.NoError(t, b.Start())

	require.NoError(t, bus.Publish(context.Background(), events.Event{
		Type:    events.EventLogUserPromptSubmit,
		Payload: map[string]interface{}{"cliSessionId": "cli-orphan"},
	}))

	assert.Empty(t, received.Type)
}
