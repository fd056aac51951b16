// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
)

// SessionClient provides access to session management operations.
//
// Access this client through [Client.Sessions]:
//
//	sessions, activeID, err := client.Sessions.List(ctx)
type SessionClient struct {
	c *Client
}

type sessionListResponse struct {
	Sessions        []Session `json:"sessions"`
	ActiveSessionID string    `json:"activeSessionId"`
}

// List returns every session plus the currently active session id.
func (s *SessionClient) List(ctx context.Context) ([]Session, string, error) {
	data, err := s.c.get(ctx, "/api/v1/sessions")
	if err != nil {
		return nil, "", err
	}

	var resp sessionListResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, "", fmt.Errorf("failed to parse sessions: %w", err)
	}

	return resp.Sessions, resp.ActiveSessionID, nil
}

// Get returns a specific session by id.
func (s *SessionClient) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.c.get(ctx, "/api/v1/sessions/"+id)
	if err != nil {
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	return &sess, nil
}

// CreateOptions configures session creation.
type CreateOptions struct {
	Name        string
	ProjectPath string

	// CLISessionID, when set, promotes an existing on-disk log into a
	// managed session instead of allocating a fresh terminal.
	CLISessionID string
}

// Create allocates a fresh session, or promotes an existing log if
// opts.CLISessionID is set.
func (s *SessionClient) Create(ctx context.Context, opts CreateOptions) (*Session, error) {
	data, err := s.c.postJSON(ctx, "/api/v1/sessions", map[string]string{
		"name":         opts.Name,
		"projectPath":  opts.ProjectPath,
		"cliSessionId": opts.CLISessionID,
	})
	if err != nil {
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	return &sess, nil
}

// Delete removes a session, best-effort tearing down its terminal and
// correlation state.
func (s *SessionClient) Delete(ctx context.Context, id string) (*DeleteResult, error) {
	data, err := s.c.delete(ctx, "/api/v1/sessions/"+id)
	if err != nil {
		return nil, err
	}

	var result DeleteResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse delete result: %w", err)
	}
	return &result, nil
}

// SetJarvisMode enables or disables Jarvis Mode on a session.
func (s *SessionClient) SetJarvisMode(ctx context.Context, id string, enabled bool) (*Session, error) {
	data, err := s.c.patchJSON(ctx, "/api/v1/sessions/"+id, map[string]interface{}{
		"jarvisMode": enabled,
	})
	if err != nil {
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	return &sess, nil
}

// LinkCli manually attaches a CLI session id and correlation cursor to a
// session, bypassing the Correlator. Mainly useful for testing.
func (s *SessionClient) LinkCli(ctx context.Context, id, cliSessionID, lastMessageID string) (*Session, error) {
	data, err := s.c.postJSON(ctx, "/api/v1/sessions/"+id+"/link-cli", map[string]string{
		"cliSessionId":  cliSessionID,
		"lastMessageId": lastMessageID,
	})
	if err != nil {
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	return &sess, nil
}
