// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package jarvis

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jarvis-mode/jarvisd/internal/events"
	"github.com/jarvis-mode/jarvisd/internal/session"
	"github.com/jarvis-mode/jarvisd/internal/store"
)

type schedCall struct {
	terminalID string
	delay      time.Duration
	payload    string
}

type fakeScheduler struct {
	mu    sync.Mutex
	calls []schedCall
}

func (f *fakeScheduler) Schedule(terminalID string, delay time.Duration, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, schedCall{terminalID, delay, string(payload)})
	return nil
}

func (f *fakeScheduler) snapshot() []schedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]schedCall, len(f.calls))
	copy(out, f.calls)
	return out
}

type noopTerminals struct{}

func (noopTerminals) Create(ctx context.Context, terminalID string, env map[string]string) error {
	return nil
}
func (noopTerminals) Kill(ctx context.Context, terminalID string) error { return nil }

func newHarness(t *testing.T) (*Controller, *store.Store, *session.Registry, *fakeScheduler, events.EventBus) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.New(filepath.Join(dir, "store.json"), filepath.Join(dir, "execution.json"))
	require.NoError(t, err)

	bus := events.NewMemoryEventBus(events.MemoryBusConfig{})
	t.Cleanup(func() { bus.Close() })

	reg := session.New(st, bus, noopTerminals{})
	sched := &fakeScheduler{}
	c := New(st, reg, sched, bus)
	require.NoError(t, c.Start())
	return c, st, reg, sched, bus
}

func TestController_JarvisEnable_InjectsPlanningPrompt(t *testing.T) {
	_, st, reg, sched, _ := newHarness(t)

	sess, err := reg.CreateSession(context.Background(), "S1", "/proj")
	require.NoError(t, err)

	_, err = reg.UpdateJarvisMode(context.Background(), sess.ID, true)
	require.NoError(t, err)

	calls := sched.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, sess.TerminalID, calls[0].terminalID)
	assert.Equal(t, time.Duration(0), calls[0].delay)
	assert.Contains(t, calls[0].payload, sess.ID)
	assert.Contains(t, calls[0].payload, "PLANNING")

	updated, err := st.GetSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, store.ModePlanning, updated.Mode)
}

func TestController_JarvisDisable_ResetsMode(t *testing.T) {
	_, st, reg, _, _ := newHarness(t)

	sess, err := reg.CreateSession(context.Background(), "S1", "/proj")
	require.NoError(t, err)
	_, err = reg.UpdateJarvisMode(context.Background(), sess.ID, true)
	require.NoError(t, err)

	_, err = reg.UpdateJarvisMode(context.Background(), sess.ID, false)
	require.NoError(t, err)

	updated, err := st.GetSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, store.ModeUnset, updated.Mode)
}

func TestController_AssistantText_EmitsTTSOnce(t *testing.T) {
	_, st, reg, _, bus := newHarness(t)

	sess, err := reg.CreateSession(context.Background(), "S1", "/proj")
	require.NoError(t, err)
	_, err = reg.LinkCli(context.Background(), sess.ID, "cli-1", "m1")
	require.NoError(t, err)
	_, err = reg.UpdateJarvisMode(context.Background(), sess.ID, true)
	require.NoError(t, err)

	var ttsCount int
	var lastText string
	_, err = bus.Subscribe(events.EventTTS, func(ctx context.Context, e events.Event) error {
		ttsCount++
		lastText, _ = e.Payload["text"].(string)
		return nil
	})
	require.NoError(t, err)

	publish := func(text string) {
		require.NoError(t, bus.Publish(context.Background(), events.Event{
			Type: events.EventLogAssistantText,
			Payload: map[string]interface{}{
				"cliSessionId": "cli-1",
				"text":         text,
			},
		}))
	}

	publish("hello")
	publish("hello") // duplicate, should not re-emit
	publish("world")

	assert.Equal(t, 2, ttsCount)
	assert.Equal(t, "world", lastText)

	updated, err := st.GetSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "world", updated.LastAssistantText)
}

func TestController_AssistantText_IgnoredWhenNotInPlanningMode(t *testing.T) {
	_, _, reg, _, bus := newHarness(t)

	sess, err := reg.CreateSession(context.Background(), "S1", "/proj")
	require.NoError(t, err)
	_, err = reg.LinkCli(context.Background(), sess.ID, "cli-1", "m1")
	require.NoError(t, err)
	// jarvisMode left false.

	var ttsCount int
	_, err = bus.Subscribe(events.EventTTS, func(ctx context.Context, e events.Event) error {
		ttsCount++
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), events.Event{
		Type: events.EventLogAssistantText,
		Payload: map[string]interface{}{
			"cliSessionId": "cli-1",
			"text":         "hello",
		},
	}))

	assert.Equal(t, 0, ttsCount)
}

func TestController_ExecutePlan_SchedulesClearThenPromptAndIgnoresStaleStop(t *testing.T) {
	c, st, reg, sched, bus := newHarness(t)

	sess, err := reg.CreateSession(context.Background(), "S1", "/proj")
	require.NoError(t, err)
	_, err = reg.UpdatePlan(context.Background(), sess.ID, "do the thing")
	require.NoError(t, err)
	_, err = reg.UpdateJarvisMode(context.Background(), sess.ID, true)
	require.NoError(t, err)
	_, err = reg.LinkCli(context.Background(), sess.ID, "cli-1", "m1")
	require.NoError(t, err)

	require.NoError(t, c.ExecutePlan(context.Background(), sess.ID))

	updated, err := st.GetSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, store.ModeExecution, updated.Mode)

	require.NoError(t, bus.Publish(context.Background(), events.Event{
		Type:    events.EventLogStop,
		Payload: map[string]interface{}{"cliSessionId": "cli-1"},
	}))

	// cliSessionId was cleared by ExecutePlan, so the stop event (still
	// keyed to the stale cli-1) should not resolve to this session anymore.
	updated, err = st.GetSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, store.ModeExecution, updated.Mode)

	_ = sched // scheduled clear-context/execution-prompt jobs checked below
	// calls[0] is the planning prompt scheduled when Jarvis Mode was enabled.
	calls := sched.snapshot()
	require.Len(t, calls, 3)
	assert.Equal(t, clearContextCommand, calls[1].payload)
	assert.Equal(t, clearContextDelay, calls[1].delay)
	assert.True(t, strings.Contains(calls[2].payload, "do the thing"))
	assert.Equal(t, executionPromptDelay, calls[2].delay)
}

func TestController_ExecutePlan_RejectsWithoutPlan(t *testing.T) {
	c, _, reg, _, _ := newHarness(t)

	sess, err := reg.CreateSession(context.Background(), "S1", "/proj")
	require.NoError(t, err)
	_, err = reg.UpdateJarvisMode(context.Background(), sess.ID, true)
	require.NoError(t, err)

	err = c.ExecutePlan(context.Background(), sess.ID)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestController_ExecutePlan_RejectsWithoutJarvisMode(t *testing.T) {
	c, _, reg, _, _ := newHarness(t)

	sess, err := reg.CreateSession(context.Background(), "S1", "/proj")
	require.NoError(t, err)
	_, err = reg.UpdatePlan(context.Background(), sess.ID, "do the thing")
	require.NoError(t, err)

	err = c.ExecutePlan(context.Background(), sess.ID)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestController_Reentrancy_DuplicateStopIgnoredDuringQuiescence(t *testing.T) {
	_, st, reg, sched, bus := newHarness(t)

	sess, err := reg.CreateSession(context.Background(), "S1", "/proj")
	require.NoError(t, err)
	_, err = reg.UpdateJarvisMode(context.Background(), sess.ID, true)
	require.NoError(t, err)
	require.NoError(t, st.PutCorrelation(sess.ID, "m1"))
	_, err = reg.LinkCli(context.Background(), sess.ID, "cli-1", "m1")
	require.NoError(t, err)
	_, err = reg.UpdateMode(context.Background(), sess.ID, store.ModeExecution)
	require.NoError(t, err)

	publishStop := func() {
		require.NoError(t, bus.Publish(context.Background(), events.Event{
			Type:    events.EventLogStop,
			Payload: map[string]interface{}{"cliSessionId": "cli-1"},
		}))
	}

	publishStop()
	publishStop() // within the quiescence window, should be a no-op

	calls := sched.snapshot()
	assert.Len(t, calls, 1, "second stop event during quiescence should not schedule another planning prompt")
}
