// Package api
// Author: momentics <momentics@gmail.com>
//
// Error taxonomy shared by the reactor, the request reader and the handlers.

package api

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Common errors used across the server.
var (
	ErrWouldBlock      = NewError(KindWouldBlock, "operation would block")
	ErrRecoverable     = NewError(KindRecoverable, "try again later")
	ErrParse           = NewError(KindParseUnknown, "malformed request")
	ErrPayloadTooLarge = NewError(KindPayloadTooLarge, "payload too large")
	ErrIncomplete      = NewError(KindIOUnknown, "peer closed before request completed")
	ErrPeerClosed      = NewError(KindIOUnknown, "peer closed connection")
	ErrNotSupported    = NewError(KindUnknown, "operation not supported on this platform")
)

// ErrorKind classifies failures by how the reactor reacts to them.
type ErrorKind int

const (
	// KindUnknown is the catch-all fallback.
	KindUnknown ErrorKind = iota
	// KindWouldBlock means non-blocking I/O was not ready; retried on next readiness.
	KindWouldBlock
	// KindRecoverable is a protocol-level "try again later".
	KindRecoverable
	// KindParseUnknown is a malformed request-line, header or chunk.
	KindParseUnknown
	// KindPayloadTooLarge is a body exceeding the configured ceiling.
	KindPayloadTooLarge
	// KindIOUnknown is an unexpected I/O failure.
	KindIOUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case KindWouldBlock:
		return "would_block"
	case KindRecoverable:
		return "recoverable"
	case KindParseUnknown:
		return "parse"
	case KindPayloadTooLarge:
		return "payload_too_large"
	case KindIOUnknown:
		return "io"
	default:
		return "unknown"
	}
}

// Error represents a structured error with kind and context.
type Error struct {
	Kind    ErrorKind
	Message string
	Context map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if len(e.Context) > 0 {
		msg = fmt.Sprintf("%s (context: %+v)", msg, e.Context)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind and message, so sentinels compare
// equal to copies that carry extra context.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

// NewError creates a new structured error.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a kind to an underlying cause.
func Wrap(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithContext returns a copy of the error carrying an extra context entry.
func (e *Error) WithContext(key string, value any) *Error {
	cp := *e
	cp.Context = make(map[string]any, len(e.Context)+1)
	for k, v := range e.Context {
		cp.Context[k] = v
	}
	cp.Context[key] = value
	return &cp
}

// KindOf classifies err. Raw errno values are mapped so that callers can
// return syscall errors unchanged.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		switch errno {
		case unix.EAGAIN, unix.EINTR:
			return KindWouldBlock
		default:
			return KindIOUnknown
		}
	}
	return KindUnknown
}

// IsWouldBlock reports whether err means "not ready yet".
func IsWouldBlock(err error) bool {
	return err != nil && KindOf(err) == KindWouldBlock
}
