// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package correlate is the Correlator: it joins incoming log records to
// Sessions strictly via the parent-message-id chain, per spec.md §4.4. It
// never scans the filesystem or guesses by project path or modification
// time — the prior design that did so caused an event-amplification loop
// and is explicitly prohibited.
package correlate

import (
	"context"
	"errors"
	"log"

	"github.com/jarvis-mode/jarvisd/internal/events"
	"github.com/jarvis-mode/jarvisd/internal/session"
	"github.com/jarvis-mode/jarvisd/internal/store"
)

// Correlator subscribes to logwatch.correlationCandidate events and updates
// the Store/Registry accordingly.
type Correlator struct {
	store *store.Store
	reg   *session.Registry
	bus   events.EventBus
}

// New constructs a Correlator. It does not subscribe until Start is called.
func New(st *store.Store, reg *session.Registry, bus events.EventBus) *Correlator {
	return &Correlator{store: st, reg: reg, bus: bus}
}

// Start subscribes to the event bus. The subscription lives until the bus
// itself is closed; there is no separate Stop, matching the Jarvis
// Controller and other long-lived subscribers in this codebase.
func (c *Correlator) Start() error {
	_, err := c.bus.Subscribe(events.EventLogCorrelationCandidate, c.handle)
	return err
}

func (c *Correlator) handle(ctx context.Context, e events.Event) error {
	cliSessionID, _ := e.Payload["cliSessionId"].(string)
	messageID, _ := e.Payload["messageId"].(string)
	parentMessageID, _ := e.Payload["parentMessageId"].(string)

	if cliSessionID == "" || messageID == "" {
		return nil
	}

	if parentMessageID == "" {
		return c.handleConversationRoot(ctx, cliSessionID, messageID)
	}
	return c.handleChainContinuation(ctx, cliSessionID, messageID, parentMessageID)
}

// handleConversationRoot implements spec.md §4.4 step 1: the record is the
// first message in a brand-new conversation.
//
// A conversation root can mean two different things: a freshly created
// Session attaching to its first-ever CLI session, or the fresh CLI session
// the AI CLI starts right after a planning→execution clear-context command
// (spec.md §4.6, §6 execution-mapping file). The two are disambiguated via
// the execution-mapping record before falling back to the FIFO
// "awaiting CLI" heuristic, since that heuristic alone cannot tell a
// brand-new session apart from a just-cleared one if both are pending at
// once.
func (c *Correlator) handleConversationRoot(ctx context.Context, cliSessionID, messageID string) error {
	if pe, ok := c.store.LookupExecutionContinuation(cliSessionID); ok {
		return c.linkExecutionContinuation(ctx, pe, cliSessionID, messageID)
	}

	if pe, ok := c.store.PeekPendingExecution(); ok {
		if _, err := c.store.RecordExecutionContinuation(pe.TerminalID, cliSessionID); err == nil {
			return c.linkExecutionContinuation(ctx, pe, cliSessionID, messageID)
		}
	}

	sessionID, err := c.store.FindSessionAwaitingCLI()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Orphan conversation not initiated via this orchestrator.
			return nil
		}
		return err
	}

	if _, err := c.reg.LinkCli(ctx, sessionID, cliSessionID, messageID); err != nil {
		return err
	}
	return c.store.PutCorrelation(sessionID, messageID)
}

// linkExecutionContinuation attaches cliSessionID back to the session a
// pending execution named, per the execution-mapping record.
func (c *Correlator) linkExecutionContinuation(ctx context.Context, pe store.PendingExecution, cliSessionID, messageID string) error {
	if _, err := c.reg.LinkCli(ctx, pe.SessionID, cliSessionID, messageID); err != nil {
		return err
	}
	return c.store.PutCorrelation(pe.SessionID, messageID)
}

// handleChainContinuation implements spec.md §4.4 step 2: the record
// continues a chain whose parent we may already know.
func (c *Correlator) handleChainContinuation(ctx context.Context, cliSessionID, messageID, parentMessageID string) error {
	sessionID, err := c.store.LookupSessionByMessageID(parentMessageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Chain originated outside any tracked Session.
			return nil
		}
		return err
	}

	sess, err := c.store.GetSession(sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	if sess.CLISessionID != cliSessionID {
		// The CLI rewrote its session id (resume/branch/clear-context).
		if _, err := c.reg.LinkCli(ctx, sessionID, cliSessionID, messageID); err != nil {
			return err
		}
	} else if _, err := c.reg.SetLastMessageID(sessionID, messageID); err != nil {
		return err
	}

	if err := c.store.PutCorrelation(sessionID, messageID); err != nil {
		log.Printf("correlate: write correlation row for session %s: %v", sessionID, err)
		return err
	}
	return nil
}
