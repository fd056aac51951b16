// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jarvis-mode/jarvisd/internal/events"
)

func TestEventHandler_History_Empty(t *testing.T) {
	bus := events.NewMemoryEventBus(events.MemoryBusConfig{})
	t.Cleanup(func() { bus.Close() })
	h := NewEventHandler(bus)

	req := httptest.NewRequest("GET", "/api/v1/events", nil)
	rec := httptest.NewRecorder()

	h.History(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEventHandler_History_FiltersByTypeAndSession(t *testing.T) {
	bus := events.NewMemoryEventBus(events.MemoryBusConfig{})
	t.Cleanup(func() { bus.Close() })

	require.NoError(t, bus.Publish(context.Background(), events.Event{Type: events.EventSessionCreated, SessionID: "s1"}))
	require.NoError(t, bus.Publish(context.Background(), events.Event{Type: events.EventSessionDeleted, SessionID: "s2"}))

	h := NewEventHandler(bus)

	req := httptest.NewRequest("GET", "/api/v1/events?type=session.created&sessionId=s1&limit=10", nil)
	rec := httptest.NewRecorder()

	h.History(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEventHandler_History_BadTimeIsIgnored(t *testing.T) {
	bus := events.NewMemoryEventBus(events.MemoryBusConfig{})
	t.Cleanup(func() { bus.Close() })
	h := NewEventHandler(bus)

	req := httptest.NewRequest("GET", "/api/v1/events?since=not-a-time", nil)
	rec := httptest.NewRecorder()

	h.History(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
