// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jarvis-mode/jarvisd/internal/events"
	"github.com/jarvis-mode/jarvisd/internal/jarvis"
	"github.com/jarvis-mode/jarvisd/internal/session"
	"github.com/jarvis-mode/jarvisd/internal/store"
)

type epFakeScheduler struct {
	mu    sync.Mutex
	calls int
}

func (f *epFakeScheduler) Schedule(terminalID string, delay time.Duration, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func newTestExecutePlanHandler(t *testing.T) (*ExecutePlanHandler, *store.Store, *session.Registry) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.New(dir+"/store.json", dir+"/execution.json")
	require.NoError(t, err)

	bus := events.NewMemoryEventBus(events.MemoryBusConfig{})
	t.Cleanup(func() { bus.Close() })

	reg := session.New(st, bus, noopTerminals{})
	ctrl := jarvis.New(st, reg, &epFakeScheduler{}, bus)

	return NewExecutePlanHandler(st, ctrl), st, reg
}

func TestExecutePlanHandler_ActiveSession_None(t *testing.T) {
	h, _, _ := newTestExecutePlanHandler(t)

	req := httptest.NewRequest("GET", "/api/v1/active-session", nil)
	rec := httptest.NewRecorder()

	h.ActiveSession(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExecutePlanHandler_ActiveSession_Found(t *testing.T) {
	h, st, reg := newTestExecutePlanHandler(t)

	sess, err := reg.CreateSession(context.Background(), "S1", "/proj")
	require.NoError(t, err)
	require.NoError(t, st.SetActiveSession(sess.ID))

	req := httptest.NewRequest("GET", "/api/v1/active-session", nil)
	rec := httptest.NewRecorder()

	h.ActiveSession(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
}

func TestExecutePlanHandler_Execute_NotReady(t *testing.T) {
	h, st, reg := newTestExecutePlanHandler(t)

	sess, err := reg.CreateSession(context.Background(), "S1", "/proj")
	require.NoError(t, err)
	require.NoError(t, st.SetActiveSession(sess.ID))

	req := httptest.NewRequest("POST", "/api/v1/execute-plan", nil)
	rec := httptest.NewRecorder()

	h.Execute(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestExecutePlanHandler_Execute_NoActiveSession(t *testing.T) {
	h, _, _ := newTestExecutePlanHandler(t)

	req := httptest.NewRequest("POST", "/api/v1/execute-plan", nil)
	rec := httptest.NewRecorder()

	h.Execute(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
