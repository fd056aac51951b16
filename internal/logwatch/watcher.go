// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logwatch is the Log Watcher: it discovers and tails the AI CLI's
// per-session NDJSON log files and emits semantic events for the
// Correlator and Jarvis Controller to consume. Grounded on the teacher's
// fsnotify-based BinaryWatcher (internal/watcher/binary.go) for the
// watch/reverse-index/event-loop shape, and on internal/claude/claudecli.go
// for the on-disk record shape and project-directory encoding.
package logwatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/jarvis-mode/jarvisd/internal/events"
)

// Watcher tails every ".jsonl" file under root and publishes events on bus.
type Watcher struct {
	mu      sync.Mutex
	root    string
	bus     events.EventBus
	fsw     *fsnotify.Watcher
	streams map[string]*stream // absolute path -> stream

	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// New creates a Watcher rooted at root (e.g. ~/.claude/projects). The
// filesystem watch is not started until Start is called.
func New(root string, bus events.EventBus) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		root:    root,
		bus:     bus,
		fsw:     fsw,
		streams: make(map[string]*stream),
		closeCh: make(chan struct{}),
	}, nil
}

// Start enumerates existing log files (tailing each from end-of-file, per
// spec.md §4.3's "no backfill" default), recursively watches root for
// changes, and begins the event-processing loop. It returns once the
// initial watch tree is established; the loop itself runs in the
// background until Close.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTreeWatch(w.root); err != nil {
		return fmt.Errorf("watch root %s: %w", w.root, err)
	}

	existing, err := w.discover()
	if err != nil {
		return fmt.Errorf("discover existing logs: %w", err)
	}
	for _, path := range existing {
		w.startStream(path, tailFromEnd)
	}

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Close stops the watcher and releases every open stream.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	for _, s := range w.streams {
		s.close()
	}
	w.streams = make(map[string]*stream)
	w.mu.Unlock()

	w.fsw.Close()
	w.wg.Wait()
	return nil
}

func (w *Watcher) addTreeWatch(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == dir {
				// Root doesn't exist yet; nothing to watch until the CLI creates it.
				return nil
			}
			return nil
		}
		if d.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				log.Printf("logwatch: watch dir %s: %v", path, err)
			}
		}
		return nil
	})
}

func (w *Watcher) discover() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(w.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(path, ".jsonl") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return paths, nil
}

type tailMode int

const (
	tailFromEnd tailMode = iota
	tailFromStart
)

func (w *Watcher) startStream(path string, mode tailMode) {
	w.mu.Lock()
	if _, ok := w.streams[path]; ok {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	cliSessionID := strings.TrimSuffix(filepath.Base(path), ".jsonl")
	s := newStream(path, cliSessionID)

	startOffset := int64(0)
	if mode == tailFromEnd {
		if info, err := os.Stat(path); err == nil {
			startOffset = info.Size()
			s.firstRecord = false // an already-existing file is not a fresh stream
		}
	}

	if err := s.open(startOffset); err != nil {
		log.Printf("logwatch: open %s: %v", path, err)
		return
	}

	w.mu.Lock()
	w.streams[path] = s
	w.mu.Unlock()

	// Pick up anything already appended between Stat and Open.
	w.pump(s)
}

func (w *Watcher) stopStream(path string) {
	w.mu.Lock()
	s, ok := w.streams[path]
	if ok {
		delete(w.streams, path)
	}
	w.mu.Unlock()
	if ok {
		s.close()
	}
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.closeCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleFSEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("logwatch: fsnotify error: %v", err)
		}
	}
}

func (w *Watcher) handleFSEvent(ev fsnotify.Event) {
	switch {
	case ev.Has(fsnotify.Create):
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.fsw.Add(ev.Name); err != nil {
				log.Printf("logwatch: watch new dir %s: %v", ev.Name, err)
			}
			return
		}
		if strings.HasSuffix(ev.Name, ".jsonl") {
			w.startStream(ev.Name, tailFromStart)
		}

	case ev.Has(fsnotify.Write):
		w.mu.Lock()
		s, ok := w.streams[ev.Name]
		w.mu.Unlock()
		if !ok {
			if strings.HasSuffix(ev.Name, ".jsonl") {
				w.startStream(ev.Name, tailFromStart)
			}
			return
		}
		w.pump(s)

	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.stopStream(ev.Name)
	}
}

// pump reads whatever has been appended to s since the last pump and
// dispatches complete lines, handling truncation per spec.md §4.3.
func (w *Watcher) pump(s *stream) {
	if shrank, err := s.truncated(); err == nil && shrank {
		if err := s.reset(); err != nil {
			log.Printf("logwatch: reopen truncated %s: %v", s.path, err)
			w.stopStream(s.path)
			return
		}
	}

	lines, err := s.readLines()
	if err != nil && !errors.Is(err, io.EOF) {
		log.Printf("logwatch: read %s: %v", s.path, err)
	}

	for _, line := range lines {
		w.dispatch(s, line)
	}
}

func (w *Watcher) dispatch(s *stream, line []byte) {
	rec, err := parseLine(line)
	if err != nil {
		log.Printf("logwatch: parse %s: %v", s.path, err)
		return
	}

	cliSessionID := s.cliSessionID
	if rec.cliSessionID != "" {
		cliSessionID = rec.cliSessionID
	}

	if s.firstRecord {
		s.firstRecord = false
		w.publish(events.EventLogSessionStart, cliSessionID, nil)
	}

	if rec.messageID != "" {
		w.publish(events.EventLogCorrelationCandidate, cliSessionID, map[string]interface{}{
			"messageId":       rec.messageID,
			"parentMessageId": rec.parentMessageID,
		})
	}

	switch rec.kind {
	case kindUserPrompt:
		w.publish(events.EventLogUserPromptSubmit, cliSessionID, map[string]interface{}{"raw": rec.raw})
	case kindAssistantText:
		if s.firstAssistant {
			s.firstAssistant = false
			w.publish(events.EventLogAssistantFirstResponse, cliSessionID, map[string]interface{}{"text": rec.text})
		}
		w.publish(events.EventLogAssistantText, cliSessionID, map[string]interface{}{"text": rec.text})
	case kindStop:
		w.publish(events.EventLogStop, cliSessionID, nil)
	}
}

func (w *Watcher) publish(eventType, cliSessionID string, payload map[string]interface{}) {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["cliSessionId"] = cliSessionID
	if err := w.bus.Publish(context.Background(), events.Event{
		Type:    eventType,
		Payload: payload,
	}); err != nil {
		log.Printf("logwatch: publish %s: %v", eventType, err)
	}
}
