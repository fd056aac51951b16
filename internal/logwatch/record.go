// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package logwatch

import "encoding/json"

// jsonlLine is one line of the AI CLI's per-session log file. Field names
// mirror the teacher's CLIJSONLLine (internal/claude/claudecli.go), which
// already documents this exact on-disk shape.
type jsonlLine struct {
	Type       string          `json:"type"`
	SessionID  string          `json:"sessionId"`
	UUID       string          `json:"uuid"`
	ParentUUID string          `json:"parentUuid,omitempty"`
	Message    json.RawMessage `json:"message"`
	Timestamp  string          `json:"timestamp"`
}

// apiMessage is the embedded Messages-API envelope carried by user/assistant lines.
type apiMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// kind classifies a parsed line for dispatch.
type kind int

const (
	kindUnknown kind = iota
	kindUserPrompt
	kindAssistantText
	kindStop
)

// parsedRecord is the line decoded enough to dispatch; text is populated
// only for kindAssistantText.
type parsedRecord struct {
	kind            kind
	cliSessionID    string
	messageID       string
	parentMessageID string
	text            string
	raw             json.RawMessage
}

// parseLine decodes one NDJSON line into a parsedRecord. A line that doesn't
// parse as JSON returns the decode error; a line with no recognizable
// envelope returns kindUnknown and a nil error. Callers log and skip parse
// failures per spec.md §4.3's "on parse failure, log and skip".
func parseLine(line []byte) (parsedRecord, error) {
	var l jsonlLine
	if err := json.Unmarshal(line, &l); err != nil {
		return parsedRecord{}, err
	}

	rec := parsedRecord{
		cliSessionID:    l.SessionID,
		messageID:       l.UUID,
		parentMessageID: l.ParentUUID,
		raw:             json.RawMessage(line),
	}

	switch l.Type {
	case "result":
		// The CLI's explicit end-of-turn marker.
		rec.kind = kindStop
		return rec, nil
	case "user":
		rec.kind = kindUserPrompt
		return rec, nil
	case "assistant":
		var msg apiMessage
		if len(l.Message) > 0 {
			if err := json.Unmarshal(l.Message, &msg); err == nil {
				for _, block := range msg.Content {
					if block.Type == "text" && block.Text != "" {
						rec.kind = kindAssistantText
						rec.text = block.Text
						return rec, nil
					}
				}
			}
		}
		// Tool-use, tool-result, or reasoning-only turns carry no displayable
		// text; still a correlation candidate, just not an assistantText.
		return rec, nil
	default:
		return rec, nil
	}
}
