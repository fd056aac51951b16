// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jarvis-mode/jarvisd/internal/events"
	"github.com/jarvis-mode/jarvisd/internal/session"
	"github.com/jarvis-mode/jarvisd/internal/store"
)

type noopTerminals struct{}

func (noopTerminals) Create(ctx context.Context, terminalID string, env map[string]string) error {
	return nil
}
func (noopTerminals) Kill(ctx context.Context, terminalID string) error { return nil }

func newTestSessionHandler(t *testing.T) (*SessionHandler, *store.Store, *session.Registry) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.New(dir+"/store.json", dir+"/execution.json")
	require.NoError(t, err)

	bus := events.NewMemoryEventBus(events.MemoryBusConfig{})
	t.Cleanup(func() { bus.Close() })

	reg := session.New(st, bus, noopTerminals{})
	return NewSessionHandler(st, reg), st, reg
}

func TestSessionHandler_Create(t *testing.T) {
	h, _, _ := newTestSessionHandler(t)

	body, _ := json.Marshal(createSessionRequest{Name: "S1", ProjectPath: "/proj"})
	req := httptest.NewRequest("POST", "/api/v1/sessions", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Data)
}

func TestSessionHandler_Create_MissingName(t *testing.T) {
	h, _, _ := newTestSessionHandler(t)

	body, _ := json.Marshal(createSessionRequest{ProjectPath: "/proj"})
	req := httptest.NewRequest("POST", "/api/v1/sessions", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Create(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionHandler_Get_NotFound(t *testing.T) {
	h, _, _ := newTestSessionHandler(t)

	req := httptest.NewRequest("GET", "/api/v1/sessions/unknown", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "unknown"})
	rec := httptest.NewRecorder()

	h.Get(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionHandler_Update_JarvisMode(t *testing.T) {
	h, _, reg := newTestSessionHandler(t)
	sess, err := reg.CreateSession(context.Background(), "S1", "/proj")
	require.NoError(t, err)

	enabled := true
	body, _ := json.Marshal(updateSessionRequest{JarvisMode: &enabled})
	req := httptest.NewRequest("PATCH", "/api/v1/sessions/"+sess.ID, bytes.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"id": sess.ID})
	rec := httptest.NewRecorder()

	h.Update(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
}

func TestSessionHandler_LinkCli(t *testing.T) {
	h, _, reg := newTestSessionHandler(t)
	sess, err := reg.CreateSession(context.Background(), "S1", "/proj")
	require.NoError(t, err)

	body, _ := json.Marshal(linkCliRequest{CLISessionID: "cli-1", LastMessageID: "m1"})
	req := httptest.NewRequest("POST", "/api/v1/sessions/"+sess.ID+"/link-cli", bytes.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"id": sess.ID})
	rec := httptest.NewRecorder()

	h.LinkCli(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionHandler_Delete(t *testing.T) {
	h, _, reg := newTestSessionHandler(t)
	sess, err := reg.CreateSession(context.Background(), "S1", "/proj")
	require.NoError(t, err)

	req := httptest.NewRequest("DELETE", "/api/v1/sessions/"+sess.ID, nil)
	req = mux.SetURLVars(req, map[string]string{"id": sess.ID})
	rec := httptest.NewRecorder()

	h.Delete(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
