//go:build linux
// +build linux

// File: reactor/notifier_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based readiness notifier.

package reactor

import (
	"errors"
	"fmt"

	"github.com/eapache/queue"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const defaultMaxEvents = 1024

// EpollNotifier is a level-triggered epoll interest set with a FIFO of
// pseudo events.
type EpollNotifier struct {
	epfd       int
	registered map[int]EventType
	pseudo     *queue.Queue
	raw        []unix.EpollEvent
	log        *zap.Logger
}

// NewNotifier constructs the platform notifier.
func NewNotifier(log *zap.Logger) (Notifier, error) {
	return NewEpollNotifier(log, defaultMaxEvents)
}

// NewEpollNotifier creates an epoll instance able to report up to maxEvents
// kernel events per wait.
func NewEpollNotifier(log *zap.Logger, maxEvents int) (*EpollNotifier, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if maxEvents <= 0 {
		maxEvents = defaultMaxEvents
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	log.Debug("epoll notifier created", zap.Int("epfd", epfd))
	return &EpollNotifier{
		epfd:       epfd,
		registered: make(map[int]EventType),
		pseudo:     queue.New(),
		raw:        make([]unix.EpollEvent, maxEvents),
		log:        log,
	}, nil
}

// RegisterEvent adds or upgrades interest for ev.Fd.
func (n *EpollNotifier) RegisterEvent(ev Event) error {
	old, tracked := n.registered[ev.Fd]
	flags := old | (ev.Types & (EventRead | EventWrite))
	op := unix.EPOLL_CTL_ADD
	if tracked {
		op = unix.EPOLL_CTL_MOD
	}
	err := n.ctl(op, ev.Fd, flags)
	if err != nil && tracked && errors.Is(err, unix.ENOENT) {
		// the descriptor number was closed and reused behind our back
		err = n.ctl(unix.EPOLL_CTL_ADD, ev.Fd, flags)
	}
	if err != nil {
		return fmt.Errorf("epoll ctl register fd %d: %w", ev.Fd, err)
	}
	n.registered[ev.Fd] = flags
	n.log.Debug("event registered", zap.Int("fd", ev.Fd), zap.Stringer("event", flags))
	return nil
}

// UnregisterEvent drops ev.Types from the interest of ev.Fd.
func (n *EpollNotifier) UnregisterEvent(ev Event) {
	old, tracked := n.registered[ev.Fd]
	if !tracked {
		n.log.Warn("unregister of untracked descriptor", zap.Int("fd", ev.Fd), zap.Stringer("event", ev.Types))
		return
	}
	remaining := old &^ ev.Types
	if remaining&(EventRead|EventWrite) == 0 {
		delete(n.registered, ev.Fd)
		if err := unix.EpollCtl(n.epfd, unix.EPOLL_CTL_DEL, ev.Fd, nil); err != nil {
			n.log.Warn("epoll ctl del failed", zap.Int("fd", ev.Fd), zap.Error(err))
			return
		}
		n.log.Debug("event unregistered", zap.Int("fd", ev.Fd))
		return
	}
	if remaining == old {
		return
	}
	if err := n.ctl(unix.EPOLL_CTL_MOD, ev.Fd, remaining); err != nil {
		n.log.Warn("epoll ctl mod failed", zap.Int("fd", ev.Fd), zap.Error(err))
		delete(n.registered, ev.Fd)
		return
	}
	n.registered[ev.Fd] = remaining
}

// TriggerPseudoEvent queues ev for the next WaitEvents.
func (n *EpollNotifier) TriggerPseudoEvent(ev Event) {
	n.pseudo.Add(ev)
}

// WaitEvents blocks on epoll_wait, without blocking when pseudo events are
// pending.
func (n *EpollNotifier) WaitEvents() ([]Event, error) {
	timeout := -1
	if n.pseudo.Length() > 0 {
		timeout = 0
	}
	cnt, err := unix.EpollWait(n.epfd, n.raw, timeout)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			cnt = 0
		} else {
			return nil, fmt.Errorf("epoll wait: %w", err)
		}
	}

	events := make([]Event, 0, cnt+n.pseudo.Length())
	for i := 0; i < cnt; i++ {
		fd := int(n.raw[i].Fd)
		flags := fromEpoll(n.raw[i].Events)
		mask := n.registered[fd] | EventError | EventHangUp
		if flags&mask == 0 {
			continue
		}
		events = append(events, Event{Fd: fd, Types: flags & mask})
	}
	for n.pseudo.Length() > 0 {
		events = append(events, n.pseudo.Remove().(Event))
	}
	return events, nil
}

// Close closes the epoll instance.
func (n *EpollNotifier) Close() error {
	return unix.Close(n.epfd)
}

func (n *EpollNotifier) ctl(op, fd int, flags EventType) error {
	ev := unix.EpollEvent{Events: toEpoll(flags), Fd: int32(fd)}
	return unix.EpollCtl(n.epfd, op, fd, &ev)
}

func toEpoll(flags EventType) uint32 {
	var events uint32
	if flags&EventRead != 0 {
		events |= unix.EPOLLIN
	}
	if flags&EventWrite != 0 {
		events |= unix.EPOLLOUT
	}
	return events
}

func fromEpoll(events uint32) EventType {
	var flags EventType
	if events&unix.EPOLLIN != 0 {
		flags |= EventRead
	}
	if events&unix.EPOLLOUT != 0 {
		flags |= EventWrite
	}
	if events&unix.EPOLLERR != 0 {
		flags |= EventError
	}
	if events&unix.EPOLLHUP != 0 {
		flags |= EventHangUp
	}
	return flags
}
