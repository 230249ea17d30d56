// File: transport/buffer.go
// Author: momentics <momentics@gmail.com>
//
// Growing read buffer fed by one non-blocking read per Load.

package transport

import (
	"bytes"
	"errors"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/pool"
	"golang.org/x/sys/unix"
)

// Source is a non-blocking byte source. Read returns api.ErrWouldBlock when
// nothing is available and (0, nil) at end of stream.
type Source interface {
	Read(p []byte) (int, error)
}

type fdSource struct {
	fd *FD
}

func (s fdSource) Read(p []byte) (int, error) {
	n, err := unix.Read(s.fd.Get(), p)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return 0, api.ErrWouldBlock
		}
		return 0, api.Wrap(api.KindIOUnknown, "read", err)
	}
	if n < 0 {
		n = 0
	}
	return n, nil
}

// ReadBuffer accumulates bytes from a Source and hands out consumed
// prefixes. Partial progress lives in the buffer only until consumed.
type ReadBuffer struct {
	src     Source
	scratch *pool.BytePool
	buf     []byte
}

// NewReadBuffer wraps src.
func NewReadBuffer(src Source) *ReadBuffer {
	return &ReadBuffer{src: src, scratch: pool.Default()}
}

// Load performs one read from the source and appends the result. It
// returns the number of bytes read; (0, nil) means end of stream.
func (b *ReadBuffer) Load() (int, error) {
	chunk := b.scratch.GetBuffer()
	defer b.scratch.PutBuffer(chunk)
	n, err := b.src.Read(*chunk)
	if err != nil {
		return 0, err
	}
	b.buf = append(b.buf, (*chunk)[:n]...)
	return n, nil
}

// Size returns the number of unconsumed bytes.
func (b *ReadBuffer) Size() int { return len(b.buf) }

// Bytes returns the unconsumed bytes without consuming them.
func (b *ReadBuffer) Bytes() []byte { return b.buf }

// ConsumeUntil consumes and returns everything up to and including delim.
// It returns false and consumes nothing when delim is not buffered yet.
func (b *ReadBuffer) ConsumeUntil(delim string) (string, bool) {
	i := bytes.Index(b.buf, []byte(delim))
	if i < 0 {
		return "", false
	}
	end := i + len(delim)
	out := string(b.buf[:end])
	b.advance(end)
	return out, true
}

// Consume removes and returns at most n bytes.
func (b *ReadBuffer) Consume(n int) []byte {
	if n > len(b.buf) {
		n = len(b.buf)
	}
	out := make([]byte, n)
	copy(out, b.buf[:n])
	b.advance(n)
	return out
}

func (b *ReadBuffer) advance(n int) {
	rest := len(b.buf) - n
	if rest == 0 {
		b.buf = b.buf[:0]
		return
	}
	copy(b.buf, b.buf[n:])
	b.buf = b.buf[:rest]
}
