// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"errors"
	"net/http"

	"github.com/jarvis-mode/jarvisd/internal/jarvis"
	"github.com/jarvis-mode/jarvisd/internal/store"
)

// ExecutePlanHandler fronts the Jarvis Controller's ExecutePlan for the
// External Tool Invoker and any other HTTP caller (spec.md §4.9). It is the
// RPC boundary the out-of-process jarvis-plan-tool binary calls into,
// since it cannot reach the daemon's in-memory Controller directly.
type ExecutePlanHandler struct {
	store *store.Store
	ctrl  *jarvis.Controller
}

// NewExecutePlanHandler constructs an ExecutePlanHandler.
func NewExecutePlanHandler(st *store.Store, ctrl *jarvis.Controller) *ExecutePlanHandler {
	return &ExecutePlanHandler{store: st, ctrl: ctrl}
}

// ActiveSession returns the currently active session id.
func (h *ExecutePlanHandler) ActiveSession(w http.ResponseWriter, r *http.Request) {
	id := h.store.GetActiveSession()
	if id == "" {
		WriteError(w, http.StatusNotFound, ErrNotFound, "no active session")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"sessionId": id})
}

// Execute drives the planning->execution transition for the active session.
func (h *ExecutePlanHandler) Execute(w http.ResponseWriter, r *http.Request) {
	id := h.store.GetActiveSession()
	if id == "" {
		WriteError(w, http.StatusNotFound, ErrNotFound, "no active session")
		return
	}

	if err := h.ctrl.ExecutePlan(r.Context(), id); err != nil {
		if errors.Is(err, jarvis.ErrNotReady) {
			WriteError(w, http.StatusConflict, ErrNotReady, err.Error())
			return
		}
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "execution started", "sessionId": id})
}
