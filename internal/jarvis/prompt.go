// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package jarvis

import "fmt"

// promptVariant distinguishes the two Planning Prompt intros spec.md §4.6
// requires: the initial enable and the auto-return-from-execution case.
type promptVariant string

const (
	variantInitial       promptVariant = "initial"
	variantPostExecution promptVariant = "post-execution"
)

// planningPrompt builds the fixed, parametrized Planning Prompt text block.
// The Session id is embedded so the update-plan/view-plan helper tool
// invocations the CLI makes target the right Session.
func planningPrompt(sessionID string, variant promptVariant) string {
	var intro string
	switch variant {
	case variantPostExecution:
		intro = "You have just finished an execution turn and are returning to planning mode."
	default:
		intro = "Jarvis Mode has just been enabled for this session."
	}

	return fmt.Sprintf(`%s

You are now in PLANNING mode for session %s. The user is not looking at the
screen right now, so keep your responses brief.

Discuss the task with the user and, once you have a concrete plan, record it
with:

    jarvisctl plan update --session %s --text "<the plan>"

You can review the currently recorded plan with:

    jarvisctl plan show --session %s

When the user is ready for you to carry out the plan, call the execute_plan
tool. Do not call execute_plan until the plan is recorded and the user has
confirmed it.`, intro, sessionID, sessionID, sessionID)
}

// executionPrompt builds the fixed Execution Prompt text block containing
// the verbatim stored plan.
func executionPrompt(sessionID, plan string) string {
	return fmt.Sprintf(`You are now in EXECUTION mode for session %s.

Carry out the following plan in one thorough pass. Do not ask clarifying
questions unless you are truly blocked; make reasonable judgment calls and
note them as you go.

PLAN:
%s`, sessionID, plan)
}

// clearContextCommand is the CLI's built-in command that resets its
// conversation context, used ahead of injecting the Execution Prompt so the
// CLI starts the execution turn with a clean context window.
const clearContextCommand = "/clear"
