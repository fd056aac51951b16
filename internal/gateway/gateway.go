// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package gateway is the Client Gateway (spec.md §4.8): a single
// bidirectional WebSocket bus per connected UI client. It forwards every
// event bus publication as an outbound message and dispatches inbound
// terminal/session commands into the PTY Multiplexer and Session Registry.
// Grounded on the teacher's internal/api/handlers/events.go (upgrader,
// SubscribeAsync fan-out, ping/pong keepalive, read goroutine for close
// detection).
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jarvis-mode/jarvisd/internal/events"
	"github.com/jarvis-mode/jarvisd/internal/session"
	"github.com/jarvis-mode/jarvisd/internal/store"
)

const (
	eventBufferSize = 100
	pongWait        = 60 * time.Second
	pingInterval    = 54 * time.Second
	submitDelay     = 1 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Terminals is the narrow slice of internal/ptymux the Gateway needs.
type Terminals interface {
	Write(terminalID string, data []byte) error
	Resize(terminalID string, cols, rows int) error
	Kill(ctx context.Context, terminalID string) error
	List() []string
}

// Sessions is the narrow slice of internal/session the Gateway needs.
type Sessions interface {
	CreateSession(ctx context.Context, name, projectPath string) (store.Session, error)
	DeleteSession(ctx context.Context, id string) session.DeleteResult
	UpdateJarvisMode(ctx context.Context, id string, enabled bool) (store.Session, error)
	LinkCli(ctx context.Context, id, cliSessionID, lastMessageID string) (store.Session, error)
}

// Scheduler is the narrow slice of internal/scheduler the Gateway needs.
type Scheduler interface {
	Schedule(terminalID string, delay time.Duration, payload []byte) error
}

// Store is the read-only slice of internal/store the Gateway needs for the
// sessionList command.
type Store interface {
	ListSessions() []store.Session
	GetActiveSession() string
}

// Hub wires one WebSocket endpoint to the daemon's internals.
type Hub struct {
	bus   events.EventBus
	term  Terminals
	reg   Sessions
	sched Scheduler
	store Store
}

// New constructs a Hub.
func New(bus events.EventBus, term Terminals, reg Sessions, sched Scheduler, st Store) *Hub {
	return &Hub{bus: bus, term: term, reg: reg, sched: sched, store: st}
}

// ServeWS upgrades the request and runs the connection's read/write loops
// until the client disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	outCh := make(chan outboundMessage, eventBufferSize)
	done := make(chan struct{})
	var closeOnce sync.Once

	subID, err := h.bus.SubscribeAsync("*", func(_ context.Context, e events.Event) error {
		msg, ok := translateEvent(e)
		if !ok {
			return nil
		}
		select {
		case outCh <- msg:
		case <-done:
		default:
			log.Printf("gateway: dropped %s - client buffer full", e.Type)
		}
		return nil
	}, eventBufferSize)
	if err != nil {
		conn.WriteJSON(errorMessage(err.Error()))
		return
	}
	defer h.bus.Unsubscribe(subID)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	var writeMu sync.Mutex
	sendJSON := func(v interface{}) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(v)
	}

	go func() {
		defer closeOnce.Do(func() { close(done) })
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg inboundMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				sendJSON(errorMessage("invalid message: " + err.Error()))
				continue
			}
			reply, ok := h.dispatch(r.Context(), msg)
			if ok {
				sendJSON(reply)
			}
		}
	}()

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case msg := <-outCh:
			if err := sendJSON(msg); err != nil {
				return
			}
		case <-pingTicker.C:
			writeMu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// dispatch executes one inbound command and returns an immediate reply, if
// the command warrants one (list-style commands do; fire-and-forget
// commands like input/resize do not — their effects surface as broadcasts).
func (h *Hub) dispatch(ctx context.Context, msg inboundMessage) (outboundMessage, bool) {
	switch msg.Type {
	case "create":
		// Terminal creation is owned by session creation (Registry.CreateSession
		// allocates the Terminal); a bare terminal.create is accepted as a
		// no-op here since the terminal already exists by the time a client
		// can address it by id.
		return outboundMessage{}, false

	case "input":
		if err := h.term.Write(msg.TerminalID, []byte(msg.Data)); err != nil {
			return errorMessage(err.Error()), true
		}
		return outboundMessage{}, false

	case "resize":
		if err := h.term.Resize(msg.TerminalID, msg.Cols, msg.Rows); err != nil {
			return errorMessage(err.Error()), true
		}
		return outboundMessage{}, false

	case "kill":
		if err := h.term.Kill(ctx, msg.TerminalID); err != nil {
			return errorMessage(err.Error()), true
		}
		return outboundMessage{}, false

	case "list":
		return terminalListPayload(h.term.List()), true

	case "execute":
		h.pasteAndSubmit(msg.TerminalID, msg.Command)
		return outboundMessage{}, false

	case "scheduleExecution":
		if err := h.sched.Schedule(msg.TerminalID, msg.delay(), []byte(msg.Command)); err != nil {
			return errorMessage(err.Error()), true
		}
		return outboundMessage{}, false

	case "sessionList":
		return sessionListPayload(h.store.ListSessions(), h.store.GetActiveSession()), true

	case "sessionCreate":
		sess, err := h.reg.CreateSession(ctx, msg.Name, msg.ProjectPath)
		if err != nil {
			return errorMessage(err.Error()), true
		}
		return outboundMessage{Type: "sessionCreated", Payload: map[string]interface{}{"session": sess}}, true

	case "sendMessage":
		h.pasteAndSubmit(msg.TerminalID, msg.Message)
		return outboundMessage{}, false

	case "toggleJarvis":
		if _, err := h.reg.UpdateJarvisMode(ctx, msg.SessionID, msg.JarvisMode); err != nil {
			return errorMessage(err.Error()), true
		}
		return outboundMessage{}, false

	case "linkCli":
		// Manual-trigger form used in testing: bypasses the Correlator and
		// links cliSessionId directly, per spec.md §4.8.
		if _, err := h.reg.LinkCli(ctx, msg.SessionID, msg.CLISessionID, msg.LastMessageID); err != nil {
			return errorMessage(err.Error()), true
		}
		return outboundMessage{}, false

	default:
		return errorMessage("unknown command: " + msg.Type), true
	}
}

// pasteAndSubmit writes text to a terminal and submits it after submitDelay,
// matching the Scheduler's paste-then-CR idiom for prompts that arrive
// directly from a client rather than through the Scheduler's queue.
func (h *Hub) pasteAndSubmit(terminalID, text string) {
	if err := h.term.Write(terminalID, []byte(text)); err != nil {
		log.Printf("gateway: write to terminal %s: %v", terminalID, err)
		return
	}
	time.AfterFunc(submitDelay, func() {
		if err := h.term.Write(terminalID, []byte("\r")); err != nil {
			log.Printf("gateway: submit to terminal %s: %v", terminalID, err)
		}
	})
}
