// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"time"

	"github.com/jarvis-mode/jarvisd/internal/events"
	"github.com/jarvis-mode/jarvisd/internal/store"
)

// inboundMessage is the envelope for every command a UI client sends over
// the WebSocket connection (spec.md §4.8). Only the fields relevant to Type
// are populated; unused fields are left zero.
type inboundMessage struct {
	Type string `json:"type"`

	// Terminal command fields.
	TerminalID   string `json:"terminalId"`
	Data         string `json:"data"`
	Cols         int    `json:"cols"`
	Rows         int    `json:"rows"`
	Command      string `json:"command"`
	DelaySeconds int    `json:"delaySeconds"`

	// Session command fields.
	SessionID     string `json:"sessionId"`
	Name          string `json:"name"`
	ProjectPath   string `json:"projectPath"`
	Message       string `json:"message"`
	JarvisMode    bool   `json:"jarvisMode"`
	CLISessionID  string `json:"cliSessionId"`
	LastMessageID string `json:"lastMessageId"`
}

// outboundMessage is the envelope every broadcast and reply takes, mirroring
// inboundMessage's flat shape so the UI parses both with one decoder.
type outboundMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func errorMessage(errText string) outboundMessage {
	return outboundMessage{Type: "error", Error: errText}
}

func sessionListPayload(sessions []store.Session, activeID string) outboundMessage {
	return outboundMessage{
		Type: "sessionList",
		Payload: map[string]interface{}{
			"sessions":        sessions,
			"activeSessionId": activeID,
		},
	}
}

func terminalListPayload(terminals []string) outboundMessage {
	return outboundMessage{Type: "terminalList", Payload: map[string]interface{}{"terminals": terminals}}
}

// translateEvent maps an internal bus event onto the wire outbound shape
// described in spec.md §4.8. Event types the Gateway has no wire mapping for
// (e.g. logwatch.* internals) return ok=false and are not forwarded.
func translateEvent(e events.Event) (outboundMessage, bool) {
	switch e.Type {
	case events.EventTerminalOutput:
		return outboundMessage{Type: "terminalOutput", Payload: e.Payload}, true
	case events.EventTerminalReady:
		return outboundMessage{Type: "terminalReady", Payload: e.Payload}, true
	case events.EventTerminalExit:
		return outboundMessage{Type: "terminalExit", Payload: e.Payload}, true
	case events.EventSessionCreated:
		return outboundMessage{Type: "sessionCreated", Payload: e.Payload}, true
	case events.EventSessionUpdated:
		payload := map[string]interface{}{"sessionId": e.SessionID, "fields": e.Payload}
		return outboundMessage{Type: "sessionUpdated", Payload: payload}, true
	case events.EventSessionDeleted:
		return outboundMessage{Type: "sessionDeleted", Payload: map[string]interface{}{"sessionId": e.SessionID}}, true
	case events.EventSessionJarvisUpdated:
		payload := map[string]interface{}{"sessionId": e.SessionID}
		for k, v := range e.Payload {
			payload[k] = v
		}
		return outboundMessage{Type: "sessionJarvisUpdated", Payload: payload}, true
	case events.EventSessionStatusUpdate:
		return outboundMessage{Type: "sessionStatusUpdate", Payload: e.Payload}, true
	case events.EventTTS:
		return outboundMessage{Type: "tts", Payload: e.Payload}, true
	default:
		return outboundMessage{}, false
	}
}

// delay converts an inbound delaySeconds field to a time.Duration, treating
// a non-positive value as "immediate".
func (m inboundMessage) delay() time.Duration {
	if m.DelaySeconds <= 0 {
		return 0
	}
	return time.Duration(m.DelaySeconds) * time.Second
}
