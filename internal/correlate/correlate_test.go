// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package correlate

import (
	"context"
	"path/filepath"
	"testing"
	"time"

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

func newHarness(t *testing.T) (*Correlator, *store.Store, *session.Registry, events.EventBus) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.New(filepath.Join(dir, "store.json"), filepath.Join(dir, "execution.json"))
	require.NoError(t, err)

	bus := events.NewMemoryEventBus(events.MemoryBusConfig{})
	t.Cleanup(func() { bus.Close() })

	reg := session.New(st, bus, noopTerminals{})
	c := New(st, reg, bus)
	require.NoError(t, c.Start())
	return c, st, reg, bus
}

func publishCandidate(t *testing.T, bus events.EventBus, cliSessionID, messageID, parentMessageID string) {
	t.Helper()
	require.NoError(t, bus.Publish(context.Background(), events.Event{
		Type: events.EventLogCorrelationCandidate,
		Payload: map[string]interface{}{
			"cliSessionId":    cliSessionID,
			"messageId":       messageID,
			"parentMessageId": parentMessageID,
		},
	}))
	// The bus dispatches synchronously to sync subscribers, but give async
	// handlers a moment regardless for robustness against future changes.
	time.Sleep(10 * time.Millisecond)
}

func TestCorrelator_ConversationRoot_AttachesAwaitingSession(t *testing.T) {
	_, st, reg, bus := newHarness(t)

	sess, err := reg.CreateSession(context.Background(), "S1", "/proj")
	require.NoError(t, err)

	publishCandidate(t, bus, "cli-1", "m1", "")

	updated, err := st.GetSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "cli-1", updated.CLISessionID)
	assert.Equal(t, "m1", updated.LastMessageID)

	sessionID, err := st.LookupSessionByMessageID("m1")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, sessionID)
}

func TestCorrelator_ConversationRoot_NoSessionAwaiting_Ignored(t *testing.T) {
	_, st, _, bus := newHarness(t)

	publishCandidate(t, bus, "cli-orphan", "m1", "")

	_, err := st.LookupSessionByMessageID("m1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCorrelator_ChainContinuation_UpdatesLastMessageID(t *testing.T) {
	_, st, reg, bus := newHarness(t)

	sess, err := reg.CreateSession(context.Background(), "S1", "/proj")
	require.NoError(t, err)
	publishCandidate(t, bus, "cli-1", "m1", "")

	publishCandidate(t, bus, "cli-1", "m2", "m1")

	updated, err := st.GetSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "m2", updated.LastMessageID)
	assert.Equal(t, "cli-1", updated.CLISessionID)

	sessionID, err := st.LookupSessionByMessageID("m2")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, sessionID)
}

func TestCorrelator_ChainContinuation_CLIRewrite(t *testing.T) {
	_, st, reg, bus := newHarness(t)

	sess, err := reg.CreateSession(context.Background(), "S1", "/proj")
	require.NoError(t, err)
	publishCandidate(t, bus, "cli-1", "m1", "")

	// The CLI resumes under a new session id but the chain still points at m1.
	publishCandidate(t, bus, "cli-2", "m2", "m1")

	updated, err := st.GetSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "cli-2", updated.CLISessionID)
	assert.Equal(t, "m2", updated.LastMessageID)
}

func TestCorrelator_ChainContinuation_UnknownParent_Ignored(t *testing.T) {
	_, st, _, bus := newHarness(t)

	publishCandidate(t, bus, "cli-1", "m2", "unknown-parent")

	_, err := st.LookupSessionByMessageID("m2")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCorrelator_ConversationRoot_PendingExecution_LinksExecutingSession(t *testing.T) {
	_, st, reg, bus := newHarness(t)

	sess, err := reg.CreateSession(context.Background(), "S1", "/proj")
	require.NoError(t, err)
	publishCandidate(t, bus, "cli-1", "m1", "")

	// Simulate ExecutePlan: opens a pending execution, then blanks the CLI
	// session id right before the clear-context command is scheduled.
	require.NoError(t, st.SetPendingExecution(store.PendingExecution{
		SessionID:  sess.ID,
		TerminalID: sess.TerminalID,
	}))
	_, err = reg.ClearCliSession(context.Background(), sess.ID)
	require.NoError(t, err)

	// A second, genuinely new session is also awaiting CLI attachment at
	// the same time as the cleared one — FindSessionAwaitingCLI's FIFO
	// heuristic alone could attach the wrong one.
	other, err := reg.CreateSession(context.Background(), "S0-older", "/proj")
	require.NoError(t, err)
	_ = other

	// The AI CLI starts a fresh conversation after the clear-context
	// command; its first record has no parentMessageId.
	publishCandidate(t, bus, "cli-2", "m2", "")

	updated, err := st.GetSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "cli-2", updated.CLISessionID)
	assert.Equal(t, "m2", updated.LastMessageID)

	sessionID, err := st.LookupSessionByMessageID("m2")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, sessionID)

	_, ok := st.PeekPendingExecution()
	assert.False(t, ok, "pending execution should be consumed")
}

func TestCorrelator_ConversationRoot_ExecutionContinuationAlreadyRecorded(t *testing.T) {
	_, st, reg, bus := newHarness(t)

	sess, err := reg.CreateSession(context.Background(), "S1", "/proj")
	require.NoError(t, err)
	publishCandidate(t, bus, "cli-1", "m1", "")

	require.NoError(t, st.SetPendingExecution(store.PendingExecution{
		SessionID:  sess.ID,
		TerminalID: sess.TerminalID,
	}))
	_, err = reg.ClearCliSession(context.Background(), sess.ID)
	require.NoError(t, err)

	// The continuation was already recorded in an earlier process
	// lifetime (daemon restart mid-execution).
	_, err = st.RecordExecutionContinuation(sess.TerminalID, "cli-2")
	require.NoError(t, err)

	publishCandidate(t, bus, "cli-2", "m2", "")

	updated, err := st.GetSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "cli-2", updated.CLISessionID)
	assert.Equal(t, "m2", updated.LastMessageID)
}
