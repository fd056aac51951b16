// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package session is the Session Registry: the canonical in-memory view of
// sessions, coordinating creation/deletion against the Store and
// broadcasting every mutation on the event bus. Nothing outside this
// package and the Correlator writes to a Session row.
package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/jarvis-mode/jarvisd/internal/events"
	"github.com/jarvis-mode/jarvisd/internal/store"
)

// TerminalAllocator is the narrow slice of the PTY Multiplexer the Registry
// needs: allocate a terminal for a fresh session and tear one down on
// deletion. Modeled on the teacher's practice of depending on small
// interfaces (terminal.TmuxExecutor) rather than a concrete manager type.
type TerminalAllocator interface {
	Create(ctx context.Context, terminalID string, env map[string]string) error
	Kill(ctx context.Context, terminalID string) error
}

// Registry is the Session Registry described in SPEC_FULL.md §4.5.
type Registry struct {
	store *store.Store
	bus   events.EventBus
	term  TerminalAllocator
}

// New constructs a Registry over an already-opened Store.
func New(st *store.Store, bus events.EventBus, term TerminalAllocator) *Registry {
	return &Registry{store: st, bus: bus, term: term}
}

// CreateSession allocates ids, persists via the Store, allocates a
// Terminal via the PTY Multiplexer, and returns the full Session. It does
// not start the AI CLI — that happens on the first PTY write from the UI.
func (r *Registry) CreateSession(ctx context.Context, name, projectPath string) (store.Session, error) {
	id := uuid.NewString()
	terminalID := uuid.NewString()

	sess := store.Session{
		ID:          id,
		Name:        name,
		Created:     time.Now(),
		TerminalID:  terminalID,
		ProjectPath: projectPath,
	}

	if err := r.term.Create(ctx, terminalID, map[string]string{"JARVISD_SESSION_ID": id}); err != nil {
		return store.Session{}, fmt.Errorf("allocate terminal: %w", err)
	}

	if err := r.store.UpsertSession(sess); err != nil {
		return store.Session{}, fmt.Errorf("persist session: %w", err)
	}

	r.broadcast(ctx, events.EventSessionCreated, id, map[string]interface{}{"session": sess})
	return sess, nil
}

// PromoteSession creates a Session pre-bound to an existing on-disk log,
// for the case where the user adopts a previously-orphaned conversation.
func (r *Registry) PromoteSession(ctx context.Context, cliSessionID, name, projectPath string) (store.Session, error) {
	id := uuid.NewString()
	terminalID := uuid.NewString()

	sess := store.Session{
		ID:           id,
		Name:         name,
		Created:      time.Now(),
		TerminalID:   terminalID,
		ProjectPath:  projectPath,
		CLISessionID: cliSessionID,
	}

	if err := r.term.Create(ctx, terminalID, map[string]string{"JARVISD_SESSION_ID": id}); err != nil {
		return store.Session{}, fmt.Errorf("allocate terminal: %w", err)
	}

	if err := r.store.UpsertSession(sess); err != nil {
		return store.Session{}, fmt.Errorf("persist session: %w", err)
	}

	r.broadcast(ctx, events.EventSessionCreated, id, map[string]interface{}{"session": sess})
	return sess, nil
}

// DeleteResult reports which sub-steps of deletion succeeded, since
// partial failure is allowed and visible to the UI.
type DeleteResult struct {
	SessionRowRemoved  bool
	TerminalKilled     bool
	CorrelationCleared bool
}

// DeleteSession is best-effort: it kills the terminal, clears correlation,
// and removes the row, recording which sub-steps succeeded.
func (r *Registry) DeleteSession(ctx context.Context, id string) DeleteResult {
	var result DeleteResult

	sess, err := r.store.GetSession(id)
	if err != nil {
		return result
	}

	if err := r.term.Kill(ctx, sess.TerminalID); err != nil {
		log.Printf("session: kill terminal %s for session %s: %v", sess.TerminalID, id, err)
	} else {
		result.TerminalKilled = true
	}

	if err := r.store.RemoveCorrelation(id); err != nil {
		log.Printf("session: remove correlation for session %s: %v", id, err)
	} else {
		result.CorrelationCleared = true
	}

	if err := r.store.DeleteSession(id); err != nil {
		log.Printf("session: delete row for session %s: %v", id, err)
	} else {
		result.SessionRowRemoved = true
	}

	r.broadcast(ctx, events.EventSessionDeleted, id, nil)
	return result
}

// UpdateJarvisMode toggles whether the session participates in the
// planning/execution cycle and broadcasts the change.
func (r *Registry) UpdateJarvisMode(ctx context.Context, id string, enabled bool) (store.Session, error) {
	sess, err := r.store.PatchSession(id, func(s *store.Session) {
		s.JarvisMode = enabled
	})
	if err != nil {
		return store.Session{}, err
	}
	r.broadcast(ctx, events.EventSessionJarvisUpdated, id, map[string]interface{}{"jarvisMode": enabled})
	return sess, nil
}

// UpdateMode sets the planning/execution phase and broadcasts the change.
func (r *Registry) UpdateMode(ctx context.Context, id string, mode store.Mode) (store.Session, error) {
	sess, err := r.store.PatchSession(id, func(s *store.Session) {
		s.Mode = mode
	})
	if err != nil {
		return store.Session{}, err
	}
	r.broadcast(ctx, events.EventSessionUpdated, id, map[string]interface{}{"mode": mode})
	return sess, nil
}

// UpdatePlan sets the stored plan text and broadcasts the change.
func (r *Registry) UpdatePlan(ctx context.Context, id, plan string) (store.Session, error) {
	sess, err := r.store.PatchSession(id, func(s *store.Session) {
		s.Plan = plan
	})
	if err != nil {
		return store.Session{}, err
	}
	r.broadcast(ctx, events.EventSessionUpdated, id, map[string]interface{}{"plan": plan})
	return sess, nil
}

// SetActive records the UI's current session focus and broadcasts it.
func (r *Registry) SetActive(ctx context.Context, id string) error {
	if err := r.store.SetActiveSession(id); err != nil {
		return err
	}
	r.broadcast(ctx, events.EventSessionUpdated, id, map[string]interface{}{"active": true})
	return nil
}

// LinkCli is called by the Correlator when a log record attaches (or
// reattaches) a cliSessionId to this session; it also broadcasts, per the
// "mutations to cliSessionId imply the linked file may be different" rule.
func (r *Registry) LinkCli(ctx context.Context, id, cliSessionID, lastMessageID string) (store.Session, error) {
	sess, err := r.store.PatchSession(id, func(s *store.Session) {
		s.CLISessionID = cliSessionID
		s.LastMessageID = lastMessageID
	})
	if err != nil {
		return store.Session{}, err
	}
	r.broadcast(ctx, events.EventSessionUpdated, id, map[string]interface{}{
		"cliSessionId":  cliSessionID,
		"lastMessageId": lastMessageID,
	})
	return sess, nil
}

// SetLastMessageID records the latest message id observed in this
// session's log chain without broadcasting — called by the Correlator on
// every chain continuation, not just the ones that also rewrite
// cliSessionId.
func (r *Registry) SetLastMessageID(id, messageID string) (store.Session, error) {
	return r.store.PatchSession(id, func(s *store.Session) {
		s.LastMessageID = messageID
	})
}

// SetLastAssistantText records the last planning-mode utterance seen, used
// by the Jarvis Controller to deduplicate TTS emission. No broadcast: this
// is controller-internal bookkeeping, not a user-facing field change.
func (r *Registry) SetLastAssistantText(id, text string) (store.Session, error) {
	return r.store.PatchSession(id, func(s *store.Session) {
		s.LastAssistantText = text
	})
}

// ClearCliSession clears cliSessionId and lastMessageId ahead of a clear
// context command, so the CLI can re-identify itself cleanly.
func (r *Registry) ClearCliSession(ctx context.Context, id string) (store.Session, error) {
	sess, err := r.store.PatchSession(id, func(s *store.Session) {
		s.CLISessionID = ""
		s.LastMessageID = ""
	})
	if err != nil {
		return store.Session{}, err
	}
	if err := r.store.RemoveCorrelation(id); err != nil {
		log.Printf("session: remove correlation while clearing cli session %s: %v", id, err)
	}
	r.broadcast(ctx, events.EventSessionUpdated, id, map[string]interface{}{"cliSessionId": ""})
	return sess, nil
}

func (r *Registry) broadcast(ctx context.Context, eventType, sessionID string, payload map[string]interface{}) {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	if err := r.bus.Publish(ctx, events.Event{
		Type:      eventType,
		SessionID: sessionID,
		Payload:   payload,
	}); err != nil {
		log.Printf("session: publish %s for %s: %v", eventType, sessionID, err)
	}
}
