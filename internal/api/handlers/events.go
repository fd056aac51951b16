// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jarvis-mode/jarvisd/internal/events"
)

// EventHandler serves the event bus's bounded history over REST; live
// streaming is the Client Gateway's job (internal/gateway), not this
// handler's — one bidirectional WebSocket endpoint replaces the teacher's
// separate events-WS and terminal-WS handlers.
type EventHandler struct {
	bus events.EventBus
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(bus events.EventBus) *EventHandler {
	return &EventHandler{bus: bus}
}

// History returns events matching the query filter.
func (h *EventHandler) History(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := events.EventFilter{}

	if types := query["type"]; len(types) > 0 {
		filter.Types = types
	}
	if sessionID := query.Get("sessionId"); sessionID != "" {
		filter.SessionID = sessionID
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if sinceStr := query.Get("since"); sinceStr != "" {
		if t, err := time.Parse(time.RFC3339, sinceStr); err == nil {
			filter.Since = t
		}
	}
	if untilStr := query.Get("until"); untilStr != "" {
		if t, err := time.Parse(time.RFC3339, untilStr); err == nil {
			filter.Until = t
		}
	}

	eventList, err := h.bus.History(filter)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, eventList)
}
