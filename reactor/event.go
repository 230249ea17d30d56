// File: reactor/event.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral readiness event and notifier interface.

package reactor

import "strings"

// EventType is a set of readiness directions.
type EventType uint32

const (
	EventRead EventType = 1 << iota
	EventWrite
	EventError
	EventHangUp
)

// Directions lists the single-bit directions a handler can be keyed by.
var Directions = [...]EventType{EventRead, EventWrite}

// Has reports whether all bits of t are set.
func (e EventType) Has(t EventType) bool { return e&t == t && t != 0 }

func (e EventType) String() string {
	if e == 0 {
		return "none"
	}
	var parts []string
	if e&EventRead != 0 {
		parts = append(parts, "read")
	}
	if e&EventWrite != 0 {
		parts = append(parts, "write")
	}
	if e&EventError != 0 {
		parts = append(parts, "error")
	}
	if e&EventHangUp != 0 {
		parts = append(parts, "hup")
	}
	return strings.Join(parts, "|")
}

// Event is a (descriptor, direction-flags) pair. Equality is structural.
type Event struct {
	Fd    int
	Types EventType
}

// NewEvent builds an event for fd.
func NewEvent(fd int, types EventType) Event {
	return Event{Fd: fd, Types: types}
}

// Notifier is the readiness-multiplexing facility driven by the server loop.
type Notifier interface {
	// RegisterEvent adds ev.Types to the interest set of ev.Fd.
	RegisterEvent(ev Event) error

	// UnregisterEvent removes ev.Types from the interest set of ev.Fd. The
	// descriptor is dropped once no direction is left. Unknown descriptors
	// are a logged no-op.
	UnregisterEvent(ev Event)

	// WaitEvents blocks until at least one event is ready, unless a pseudo
	// event is pending, in which case it does not block at all. Kernel
	// events come first, pseudo events are appended after them.
	WaitEvents() ([]Event, error)

	// TriggerPseudoEvent schedules ev for delivery by the next WaitEvents.
	TriggerPseudoEvent(ev Event)

	// Close releases the underlying kernel object.
	Close() error
}
