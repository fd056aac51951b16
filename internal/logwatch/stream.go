// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package logwatch

import (
	"bytes"
	"io"
	"os"
)

// stream is one append-only log file being tailed. One per cliSessionId,
// per spec.md §3's "Log-file stream" record: (cliSessionId, file handle in
// tail mode, last offset, pending partial line).
type stream struct {
	path         string
	cliSessionID string

	f      *os.File
	offset int64
	pend   []byte // partial line left over from the previous read

	firstRecord    bool // true until the first line has been dispatched
	firstAssistant bool // true until the first assistantText has been dispatched
}

func newStream(path, cliSessionID string) *stream {
	return &stream{
		path:           path,
		cliSessionID:   cliSessionID,
		firstRecord:    true,
		firstAssistant: true,
	}
}

// open opens the file and seeks to the given offset (0 for a freshly
// discovered file — per spec.md §4.3 there is typically no backfill need).
func (s *stream) open(startOffset int64) error {
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	if startOffset > 0 {
		if _, err := f.Seek(startOffset, io.SeekStart); err != nil {
			f.Close()
			return err
		}
	}
	s.f = f
	s.offset = startOffset
	return nil
}

func (s *stream) close() {
	if s.f != nil {
		s.f.Close()
		s.f = nil
	}
}

// truncated reports whether the underlying file is now shorter than our
// current read offset, meaning it was rotated/truncated out from under us.
func (s *stream) truncated() (bool, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return false, err
	}
	return info.Size() < s.offset, nil
}

// reset reopens the stream from the beginning after a detected truncation.
func (s *stream) reset() error {
	s.close()
	s.pend = nil
	s.firstRecord = true
	s.firstAssistant = true
	return s.open(0)
}

const maxLineSize = 4 * 1024 * 1024

// readLines reads whatever has been appended since the last call and
// returns complete newline-terminated lines; any trailing partial line is
// buffered in s.pend until it completes.
func (s *stream) readLines() ([][]byte, error) {
	var lines [][]byte
	buf := make([]byte, 64*1024)

	for {
		n, err := s.f.Read(buf)
		if n > 0 {
			s.pend = append(s.pend, buf[:n]...)
			s.offset += int64(n)

			for {
				idx := bytes.IndexByte(s.pend, '\n')
				if idx < 0 {
					break
				}
				line := s.pend[:idx]
				s.pend = s.pend[idx+1:]
				if len(line) > 0 {
					cp := make([]byte, len(line))
					copy(cp, line)
					lines = append(lines, cp)
				}
			}
			if len(s.pend) > maxLineSize {
				// Runaway unterminated line; drop it rather than growing forever.
				s.pend = nil
			}
		}
		if err != nil {
			if err == io.EOF {
				return lines, nil
			}
			return lines, err
		}
		if n == 0 {
			return lines, nil
		}
	}
}
