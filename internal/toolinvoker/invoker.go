// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package toolinvoker is the External Tool Invoker (spec.md §4.9): the
// logic behind the execute_plan tool the AI CLI calls from inside its PTY.
// It is shared between cmd/jarvis-plan-tool (the out-of-process binary the
// CLI spawns) and any in-process caller, so the planning→execution
// transition has exactly one implementation regardless of who triggers it.
//
// The Invoker runs as a separate OS process from the daemon, so it cannot
// reach into the daemon's in-memory Jarvis Controller, Scheduler, or PTY
// Multiplexer directly — those own live file descriptors and goroutines
// that exist only in the daemon's address space. It instead calls the
// daemon's HTTP API, which runs jarvis.Controller.ExecutePlan inside the
// daemon, so the transition has one implementation. This is the
// concrete reading of spec.md §4.9's "the contract between them is the
// Store... and the Client Gateway's scheduleExecution" — an RPC boundary,
// not shared file access (see DESIGN.md).
package toolinvoker

import (
	"context"
	"errors"
	"fmt"
)

// Caller is the narrow remote-call surface the Invoker needs. pkg/client
// implements this over the daemon's HTTP API.
type Caller interface {
	// ActiveSessionID returns the currently active session, or an error if
	// none is set.
	ActiveSessionID(ctx context.Context) (string, error)
	// ExecutePlan drives the planning→execution transition for sessionID.
	ExecutePlan(ctx context.Context, sessionID string) error
}

// Invoke looks up the active session and drives its planning→execution
// transition, returning a short human-readable string the CLI renders
// verbatim to the user — success or failure alike.
func Invoke(ctx context.Context, c Caller) string {
	sessionID, err := c.ActiveSessionID(ctx)
	if err != nil {
		return fmt.Sprintf("execute_plan failed: no active session (%v)", err)
	}

	if err := c.ExecutePlan(ctx, sessionID); err != nil {
		return fmt.Sprintf("execute_plan failed: %v", err)
	}

	return "Plan execution started. The session will clear context and begin implementing shortly."
}

// ErrNoActiveSession is available to Caller implementations for the case
// where the Store has no active session pointer set. pkg/client does not
// use it: it returns the daemon's NOT_FOUND *APIError instead.
var ErrNoActiveSession = errors.New("toolinvoker: no active session")
