// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
)

// ExecutePlanClient fronts the planning->execution trigger the External
// Tool Invoker calls (spec.md §4.9). It satisfies internal/toolinvoker.Caller
// so a jarvis-plan-tool binary can use it directly with no adapter code.
//
// Access this client through [Client.ExecutePlan]:
//
//	id, err := client.ExecutePlan.ActiveSessionID(ctx)
type ExecutePlanClient struct {
	c *Client
}

type activeSessionResponse struct {
	SessionID string `json:"sessionId"`
}

// ActiveSessionID returns the currently active session id.
func (e *ExecutePlanClient) ActiveSessionID(ctx context.Context) (string, error) {
	data, err := e.c.get(ctx, "/api/v1/active-session")
	if err != nil {
		return "", err
	}

	var resp activeSessionResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("failed to parse active session: %w", err)
	}
	return resp.SessionID, nil
}

// ExecutePlan asks the daemon to drive the planning->execution transition.
// sessionID is not sent: the daemon applies the transition to its current
// active session.
func (e *ExecutePlanClient) ExecutePlan(ctx context.Context, sessionID string) error {
	_, err := e.c.post(ctx, "/api/v1/execute-plan")
	return err
}
