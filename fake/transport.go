// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for the reactor interfaces.

package fake

import (
	"github.com/momentics/hioload-httpd/api"
)

// Source is a scripted transport.Source. Each Read hands out the next
// queued chunk (split across reads if p is short). Once the script is
// exhausted it reports would-block, or end of stream after CloseInput.
type Source struct {
	chunks [][]byte
	eof    bool
	err    error
	Reads  int
}

// NewSource queues chunks in order.
func NewSource(chunks ...[]byte) *Source {
	s := &Source{}
	for _, c := range chunks {
		s.Push(c)
	}
	return s
}

// Push appends another chunk.
func (s *Source) Push(chunk []byte) {
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.chunks = append(s.chunks, cp)
}

// CloseInput makes reads return end of stream once drained.
func (s *Source) CloseInput() { s.eof = true }

// FailWith makes every following Read return err.
func (s *Source) FailWith(err error) { s.err = err }

// Pending reports how many chunks are still queued.
func (s *Source) Pending() int { return len(s.chunks) }

func (s *Source) Read(p []byte) (int, error) {
	s.Reads++
	if s.err != nil {
		return 0, s.err
	}
	if len(s.chunks) == 0 {
		if s.eof {
			return 0, nil
		}
		return 0, api.ErrWouldBlock
	}
	n := copy(p, s.chunks[0])
	if n == len(s.chunks[0]) {
		s.chunks = s.chunks[1:]
	} else {
		s.chunks[0] = s.chunks[0][n:]
	}
	return n, nil
}
