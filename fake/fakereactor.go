// Author: momentics <momentics@gmail.com>

package fake

import (
	"github.com/eapache/queue"
	"github.com/momentics/hioload-httpd/reactor"
)

// Notifier is an in-memory reactor.Notifier. Tests script kernel readiness
// with Ready; pseudo events are queued FIFO just like the epoll notifier.
type Notifier struct {
	Interest   map[int]reactor.EventType
	ready      []reactor.Event
	pseudo     *queue.Queue
	RegisterFn func(reactor.Event) error
	Warnings   int
	Closed     bool
}

var _ reactor.Notifier = (*Notifier)(nil)

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{Interest: make(map[int]reactor.EventType), pseudo: queue.New()}
}

func (n *Notifier) RegisterEvent(ev reactor.Event) error {
	if n.RegisterFn != nil {
		if err := n.RegisterFn(ev); err != nil {
			return err
		}
	}
	n.Interest[ev.Fd] |= ev.Types & (reactor.EventRead | reactor.EventWrite)
	return nil
}

func (n *Notifier) UnregisterEvent(ev reactor.Event) {
	old, ok := n.Interest[ev.Fd]
	if !ok {
		n.Warnings++
		return
	}
	if rest := old &^ ev.Types; rest&(reactor.EventRead|reactor.EventWrite) == 0 {
		delete(n.Interest, ev.Fd)
	} else {
		n.Interest[ev.Fd] = rest
	}
}

// Ready schedules kernel-style events for the next WaitEvents.
func (n *Notifier) Ready(events ...reactor.Event) {
	n.ready = append(n.ready, events...)
}

func (n *Notifier) WaitEvents() ([]reactor.Event, error) {
	events := n.ready
	n.ready = nil
	for n.pseudo.Length() > 0 {
		events = append(events, n.pseudo.Remove().(reactor.Event))
	}
	return events, nil
}

func (n *Notifier) TriggerPseudoEvent(ev reactor.Event) {
	n.pseudo.Add(ev)
}

// PendingPseudo reports how many pseudo events are queued.
func (n *Notifier) PendingPseudo() int { return n.pseudo.Length() }

// Watching reports whether fd has all of types registered.
func (n *Notifier) Watching(fd int, types reactor.EventType) bool {
	return n.Interest[fd].Has(types)
}

func (n *Notifier) Close() error {
	n.Closed = true
	return nil
}
