// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jarvis-mode/jarvisd/internal/session"
	"github.com/jarvis-mode/jarvisd/internal/store"
)

// SessionHandler serves the REST surface over the Session Registry, mirroring
// the commands the Client Gateway also exposes over WebSocket — a UI or
// helper script that prefers plain HTTP can use either.
type SessionHandler struct {
	store *store.Store
	reg   *session.Registry
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(st *store.Store, reg *session.Registry) *SessionHandler {
	return &SessionHandler{store: st, reg: reg}
}

// List returns every session plus the active session id.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sessions":        h.store.ListSessions(),
		"activeSessionId": h.store.GetActiveSession(),
	})
}

type createSessionRequest struct {
	Name         string `json:"name"`
	ProjectPath  string `json:"projectPath"`
	CLISessionID string `json:"cliSessionId"` // set for promoteSession
}

// Create allocates a fresh session, or promotes an existing on-disk log if
// cliSessionId is supplied.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid JSON")
		return
	}
	if req.Name == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "name is required")
		return
	}

	var (
		sess store.Session
		err  error
	)
	if req.CLISessionID != "" {
		sess, err = h.reg.PromoteSession(r.Context(), req.CLISessionID, req.Name, req.ProjectPath)
	} else {
		sess, err = h.reg.CreateSession(r.Context(), req.Name, req.ProjectPath)
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusCreated, sess)
}

// Get returns a single session.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sess, err := h.store.GetSession(id)
	if err != nil {
		WriteError(w, http.StatusNotFound, ErrNotFound, "session not found")
		return
	}
	WriteJSON(w, http.StatusOK, sess)
}

// Delete removes a session, best-effort.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	result := h.reg.DeleteSession(r.Context(), id)
	WriteJSON(w, http.StatusOK, result)
}

type updateSessionRequest struct {
	JarvisMode *bool   `json:"jarvisMode"`
	Plan       *string `json:"plan"`
	Active     *bool   `json:"active"`
}

// Update applies a partial update to jarvisMode, plan, and/or active status.
func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req updateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid JSON")
		return
	}

	var (
		sess store.Session
		err  error
	)
	if req.JarvisMode != nil {
		sess, err = h.reg.UpdateJarvisMode(r.Context(), id, *req.JarvisMode)
		if err != nil {
			writeSessionErr(w, err)
			return
		}
	}
	if req.Plan != nil {
		sess, err = h.reg.UpdatePlan(r.Context(), id, *req.Plan)
		if err != nil {
			writeSessionErr(w, err)
			return
		}
	}
	if req.Active != nil && *req.Active {
		if err := h.reg.SetActive(r.Context(), id); err != nil {
			writeSessionErr(w, err)
			return
		}
		sess, err = h.store.GetSession(id)
		if err != nil {
			writeSessionErr(w, err)
			return
		}
	}

	WriteJSON(w, http.StatusOK, sess)
}

type linkCliRequest struct {
	CLISessionID  string `json:"cliSessionId"`
	LastMessageID string `json:"lastMessageId"`
}

// LinkCli is the manual-trigger form of cliSessionId attachment used in
// testing, bypassing the Correlator (spec.md §4.8).
func (h *SessionHandler) LinkCli(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req linkCliRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid JSON")
		return
	}

	sess, err := h.reg.LinkCli(r.Context(), id, req.CLISessionID, req.LastMessageID)
	if err != nil {
		writeSessionErr(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, sess)
}

func writeSessionErr(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		WriteError(w, http.StatusNotFound, ErrNotFound, "session not found")
		return
	}
	WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
}
