// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package jarvis is the Jarvis Controller: the planning/execution state
// machine described in spec.md §4.6. It subscribes to the event bus for
// its inputs (Jarvis toggle, assistant text, end-of-turn) and drives the
// Session Registry and Scheduler; nothing outside this package decides
// mode transitions.
package jarvis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jarvis-mode/jarvisd/internal/events"
	"github.com/jarvis-mode/jarvisd/internal/session"
	"github.com/jarvis-mode/jarvisd/internal/store"
)

// ErrNotReady is returned by ExecutePlan when the session is not eligible
// for a planning→execution transition.
var ErrNotReady = errors.New("jarvis: session not ready for execution")

// Scheduler is the narrow slice of internal/scheduler the Controller needs.
type Scheduler interface {
	Schedule(terminalID string, delay time.Duration, payload []byte) error
}

const (
	clearContextDelay    = 8 * time.Second
	executionPromptDelay = 11 * time.Second
	postStopDelay        = 2 * time.Second
	// settleBuffer bounds how long the Controller considers a planning-prompt
	// injection "in flight" for reentrancy purposes: the Scheduler's own
	// write-then-CR gap plus slack for the write itself.
	settleBuffer = 1500 * time.Millisecond
)

// Controller is the Jarvis Controller.
type Controller struct {
	store *store.Store
	reg   *session.Registry
	sched Scheduler
	bus   events.EventBus

	mu      sync.Mutex
	pending map[string]bool // sessionID -> planning-prompt injection in flight
}

// New constructs a Controller. Call Start to subscribe to the event bus.
func New(st *store.Store, reg *session.Registry, sched Scheduler, bus events.EventBus) *Controller {
	return &Controller{
		store:   st,
		reg:     reg,
		sched:   sched,
		bus:     bus,
		pending: make(map[string]bool),
	}
}

// Start subscribes to the Jarvis toggle, assistantText, and stop events.
func (c *Controller) Start() error {
	if _, err := c.bus.Subscribe(events.EventSessionJarvisUpdated, c.handleJarvisToggle); err != nil {
		return err
	}
	if _, err := c.bus.Subscribe(events.EventLogAssistantText, c.handleAssistantText); err != nil {
		return err
	}
	if _, err := c.bus.Subscribe(events.EventLogStop, c.handleStop); err != nil {
		return err
	}
	return nil
}

func (c *Controller) handleJarvisToggle(ctx context.Context, e events.Event) error {
	enabled, _ := e.Payload["jarvisMode"].(bool)
	sessionID := e.SessionID
	if sessionID == "" {
		return nil
	}

	if !enabled {
		if _, err := c.reg.UpdateMode(ctx, sessionID, store.ModeUnset); err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Printf("jarvis: reset mode for session %s: %v", sessionID, err)
		}
		return nil
	}

	sess, err := c.store.GetSession(sessionID)
	if err != nil {
		return nil
	}
	if _, err := c.reg.UpdateMode(ctx, sessionID, store.ModePlanning); err != nil {
		log.Printf("jarvis: set planning mode for session %s: %v", sessionID, err)
		return nil
	}
	c.injectPlanningPrompt(sessionID, sess.TerminalID, variantInitial, 0)
	return nil
}

func (c *Controller) handleAssistantText(ctx context.Context, e events.Event) error {
	cliSessionID, _ := e.Payload["cliSessionId"].(string)
	text, _ := e.Payload["text"].(string)
	if cliSessionID == "" || text == "" {
		return nil
	}

	sess, err := c.store.FindSessionByCLISessionID(cliSessionID)
	if err != nil {
		return nil
	}
	if !sess.JarvisMode || sess.Mode != store.ModePlanning {
		return nil
	}
	if text == sess.LastAssistantText {
		return nil
	}

	if _, err := c.reg.SetLastAssistantText(sess.ID, text); err != nil {
		log.Printf("jarvis: record last assistant text for session %s: %v", sess.ID, err)
		return nil
	}

	return c.bus.Publish(ctx, events.Event{
		Type:      events.EventTTS,
		SessionID: sess.ID,
		Payload: map[string]interface{}{
			"sessionId": sess.ID,
			"text":      text,
			"timestamp": time.Now(),
			"length":    len(text),
		},
	})
}

func (c *Controller) handleStop(ctx context.Context, e events.Event) error {
	cliSessionID, _ := e.Payload["cliSessionId"].(string)
	if cliSessionID == "" {
		return nil
	}

	sess, err := c.store.FindSessionByCLISessionID(cliSessionID)
	if err != nil {
		return nil
	}
	if !sess.JarvisMode || sess.Mode != store.ModeExecution {
		return nil
	}

	if _, err := c.reg.UpdateMode(ctx, sess.ID, store.ModePlanning); err != nil {
		log.Printf("jarvis: return to planning for session %s: %v", sess.ID, err)
		return nil
	}
	c.injectPlanningPrompt(sess.ID, sess.TerminalID, variantPostExecution, postStopDelay)
	return nil
}

// injectPlanningPrompt schedules the Planning Prompt for delivery, guarding
// against a second injection while the first is still being written —
// covers both the reentrancy rule on the enable path and the "duplicate
// stop events during the quiescence window are ignored" rule.
func (c *Controller) injectPlanningPrompt(sessionID, terminalID string, variant promptVariant, delay time.Duration) {
	c.mu.Lock()
	if c.pending[sessionID] {
		c.mu.Unlock()
		return
	}
	c.pending[sessionID] = true
	c.mu.Unlock()

	prompt := planningPrompt(sessionID, variant)
	if err := c.sched.Schedule(terminalID, delay, []byte(prompt)); err != nil {
		log.Printf("jarvis: schedule planning prompt for session %s: %v", sessionID, err)
	}

	time.AfterFunc(delay+settleBuffer, func() {
		c.mu.Lock()
		delete(c.pending, sessionID)
		c.mu.Unlock()
	})
}

// ExecutePlan drives the planning→execution transition (spec.md §4.6,
// triggered by the execute_plan tool call). It is also the entrypoint the
// External Tool Invoker calls into.
func (c *Controller) ExecutePlan(ctx context.Context, sessionID string) error {
	sess, err := c.store.GetSession(sessionID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	if !sess.JarvisMode || sess.Plan == "" {
		return ErrNotReady
	}

	if _, err := c.reg.UpdateMode(ctx, sessionID, store.ModeExecution); err != nil {
		return fmt.Errorf("persist execution mode: %w", err)
	}

	if err := c.store.SetPendingExecution(store.PendingExecution{
		SessionID:  sessionID,
		TerminalID: sess.TerminalID,
		StartTime:  time.Now(),
	}); err != nil {
		log.Printf("jarvis: record pending execution for session %s: %v", sessionID, err)
	}

	if _, err := c.reg.ClearCliSession(ctx, sessionID); err != nil {
		log.Printf("jarvis: clear cli session for %s: %v", sessionID, err)
	}

	if err := c.sched.Schedule(sess.TerminalID, clearContextDelay, []byte(clearContextCommand)); err != nil {
		log.Printf("jarvis: schedule clear-context for session %s: %v", sessionID, err)
	}
	if err := c.sched.Schedule(sess.TerminalID, executionPromptDelay, []byte(executionPrompt(sessionID, sess.Plan))); err != nil {
		log.Printf("jarvis: schedule execution prompt for session %s: %v", sessionID, err)
	}

	return nil
}
