// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Single-threaded reactor loop: wait, dispatch to handlers, execute the
// returned actions in order, repeat.

package server

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/config"
	"github.com/momentics/hioload-httpd/core"
	"github.com/momentics/hioload-httpd/reactor"
	"github.com/momentics/hioload-httpd/transport"
	"github.com/momentics/hioload-httpd/vserver"
	"go.uber.org/zap"
)

// Server owns the reactor state together with the descriptors the loop
// handles itself: the child reaper's self-pipe and the sweep ticker.
type Server struct {
	cfg       *config.Config
	log       *zap.Logger
	observer  core.Observer
	publisher Publisher

	notifier  reactor.Notifier
	state     *core.State
	resolvers *vserver.ResolverFactory
	reaper    *core.ChildReaper
	ticker    *reactor.Ticker
	addrs     []transport.Address

	running   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
}

// New binds every configured listen address and prepares the loop. Nothing
// is served until Run or Tick is called.
func New(cfg *config.Config, opts ...ServerOption) (*Server, error) {
	if cfg == nil || len(cfg.Servers) == 0 {
		return nil, config.ErrNoServers
	}
	s := &Server{cfg: cfg}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.observer == nil {
		s.observer = core.NopObserver
	}
	if s.notifier == nil {
		n, err := reactor.NewNotifier(s.log)
		if err != nil {
			return nil, fmt.Errorf("create notifier: %w", err)
		}
		s.notifier = n
	}

	svc := core.NewServices(vserver.NewRouter(s.log), s.observer, s.log)
	s.state = core.NewState(s.notifier, svc)
	s.resolvers = vserver.NewResolverFactory(cfg.Servers)

	if err := s.init(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) init() error {
	reaper, err := core.NewChildReaper(s.log)
	if err != nil {
		return fmt.Errorf("child reaper: %w", err)
	}
	s.reaper = reaper
	if err := s.notifier.RegisterEvent(reactor.NewEvent(reaper.Fd(), reactor.EventRead)); err != nil {
		return fmt.Errorf("watch reaper: %w", err)
	}

	interval := s.cfg.Timeouts.SweepInterval.Duration
	if interval <= 0 {
		interval = config.DefaultSweepInterval
	}
	ticker, err := reactor.NewTicker(interval)
	if err != nil {
		return fmt.Errorf("sweep ticker: %w", err)
	}
	s.ticker = ticker
	if err := s.notifier.RegisterEvent(reactor.NewEvent(ticker.Fd(), reactor.EventRead)); err != nil {
		return fmt.Errorf("watch ticker: %w", err)
	}

	for _, addr := range s.resolvers.ListenAddresses() {
		l, err := transport.Listen(addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		fd := l.Fd()
		s.state.Execute([]*core.Action{
			core.RegisterHandler(fd, reactor.EventRead, core.NewAcceptHandler(s.state.Services, l)),
		})
		if err := core.RegisterEvent(reactor.NewEvent(fd, reactor.EventRead)).Execute(s.state); err != nil {
			return fmt.Errorf("watch listener %s: %w", addr, err)
		}
		s.addrs = append(s.addrs, l.Address())
		s.log.Info("listening", zap.Stringer("addr", l.Address()), zap.Int("fd", fd))
	}
	return nil
}

// Addresses returns the bound listen addresses.
func (s *Server) Addresses() []transport.Address {
	out := make([]transport.Address, len(s.addrs))
	copy(out, s.addrs)
	return out
}

// Tick waits for one batch of events and processes it completely. A wait
// failure is returned; the server stays usable for the next tick.
func (s *Server) Tick() error {
	if s.closed.Load() {
		return ErrClosed
	}
	events, err := s.notifier.WaitEvents()
	if err != nil {
		return fmt.Errorf("wait events: %w", err)
	}
	now := s.state.Services.Now()
	touched := make(map[int]struct{})
	sweep := false
	for _, ev := range events {
		switch ev.Fd {
		case s.reaper.Fd():
			s.execute(core.HandleReaped(s.state, s.reaper.OnSignalEvent()), touched)
		case s.ticker.Fd():
			if _, err := s.ticker.Drain(); err != nil {
				s.log.Warn("ticker drain failed", zap.Error(err))
			}
			sweep = true
		default:
			s.dispatch(ev, now, touched)
		}
	}
	if sweep {
		s.sweep(now, touched)
	}
	s.observer.ActiveConnections(s.state.Connections.Len())
	return nil
}

func (s *Server) context(ev reactor.Event, now time.Time) *core.Context {
	conn, _ := s.state.Connections.Get(ev.Fd)
	return &core.Context{Event: ev, Conn: conn, Resolvers: s.resolvers, Now: now}
}

// dispatch invokes the handler of every direction set in ev. An event that
// only reports an error or hang-up goes to OnErrorEvent instead.
func (s *Server) dispatch(ev reactor.Event, now time.Time, touched map[int]struct{}) {
	if ev.Types&(reactor.EventRead|reactor.EventWrite) == 0 {
		s.dispatchError(ev, now, touched)
		return
	}
	for _, dir := range reactor.Directions {
		if ev.Types&dir == 0 {
			continue
		}
		h, ok := s.state.Handlers.Get(core.HandlerKey{Fd: ev.Fd, Type: dir})
		if !ok {
			s.log.Debug("event without handler", zap.Int("fd", ev.Fd), zap.Stringer("event", dir))
			continue
		}
		touched[ev.Fd] = struct{}{}
		ctx := s.context(ev, now)
		actions, err := h.Invoke(ctx)
		if err != nil {
			core.DiscardAll(actions)
			if api.IsWouldBlock(err) {
				continue
			}
			actions = s.recover(h, ctx, err)
		}
		s.execute(actions, touched)
	}
}

func (s *Server) dispatchError(ev reactor.Event, now time.Time, touched map[int]struct{}) {
	touched[ev.Fd] = struct{}{}
	found, teardown := false, false
	for _, dir := range reactor.Directions {
		h, ok := s.state.Handlers.Get(core.HandlerKey{Fd: ev.Fd, Type: dir})
		if !ok {
			continue
		}
		found = true
		fallback, actions := h.OnErrorEvent(s.context(ev, now), ev)
		s.execute(actions, touched)
		teardown = teardown || fallback
	}
	switch {
	case !found:
		s.log.Debug("error event without handler", zap.Int("fd", ev.Fd), zap.Stringer("event", ev.Types))
		s.notifier.UnregisterEvent(reactor.NewEvent(ev.Fd, reactor.EventRead|reactor.EventWrite))
	case teardown:
		s.execute(core.Teardown(ev.Fd), touched)
	}
}

// recover asks h how to react to a failed invocation.
func (s *Server) recover(h core.Handler, ctx *core.Context, err error) []*core.Action {
	kind := api.KindOf(err)
	s.observer.HandlerError(kind)
	if errors.Is(err, api.ErrPeerClosed) {
		s.log.Debug("peer closed", zap.Int("fd", ctx.Event.Fd), zap.String("handler", h.Name()))
	} else {
		s.log.Warn("handler failed",
			zap.Int("fd", ctx.Event.Fd),
			zap.String("handler", h.Name()),
			zap.Stringer("kind", kind),
			zap.Error(err))
	}
	fallback, actions := h.OnErrorEvent(ctx, ctx.Event)
	if fallback {
		actions = append(actions, core.Teardown(ctx.Event.Fd)...)
	}
	return actions
}

func (s *Server) execute(actions []*core.Action, touched map[int]struct{}) {
	for _, fd := range s.state.Execute(actions) {
		touched[fd] = struct{}{}
	}
}

func (s *Server) sweep(now time.Time, touched map[int]struct{}) {
	limits := core.Timeouts{
		Client: s.cfg.Timeouts.Client.Duration,
		Cgi:    s.cfg.Timeouts.Cgi.Duration,
	}
	s.execute(core.Sweep(s.state, now, limits, touched), touched)
	if s.publisher != nil {
		s.publisher.Publish(s.state.Snapshot(now))
	}
}

// Close releases every connection, handler, listener and child, then the
// loop's own descriptors. It must not race with Tick.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if s.state != nil {
			s.state.Close()
		}
		if s.reaper != nil {
			if err := s.reaper.Close(); err != nil {
				s.log.Warn("reaper close failed", zap.Error(err))
			}
		}
		if s.ticker != nil {
			if err := s.ticker.Close(); err != nil {
				s.log.Warn("ticker close failed", zap.Error(err))
			}
		}
		if s.notifier != nil {
			if err := s.notifier.Close(); err != nil {
				s.log.Warn("notifier close failed", zap.Error(err))
			}
		}
	})
}
