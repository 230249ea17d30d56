// File: core/state.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package core

import (
	"os"
	"sort"
	"time"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/reactor"
	"github.com/momentics/hioload-httpd/transport"
	"github.com/momentics/hioload-httpd/vserver"
	"go.uber.org/zap"
)

// Observer receives reactor telemetry. Implementations must be cheap; they
// are called from the reactor goroutine.
type Observer interface {
	ConnectionAccepted()
	ActiveConnections(n int)
	RequestServed(status int)
	CgiSpawned()
	CgiReaped(exitCode int)
	CgiTimedOut()
	HandlerError(kind api.ErrorKind)
	Timeout(kind string)
}

type nopObserver struct{}

func (nopObserver) ConnectionAccepted()        {}
func (nopObserver) ActiveConnections(int)      {}
func (nopObserver) RequestServed(int)          {}
func (nopObserver) CgiSpawned()                {}
func (nopObserver) CgiReaped(int)              {}
func (nopObserver) CgiTimedOut()               {}
func (nopObserver) HandlerError(api.ErrorKind) {}
func (nopObserver) Timeout(string)             {}

// NopObserver discards all telemetry.
var NopObserver Observer = nopObserver{}

// Services are the collaborators handlers need beyond their Context.
type Services struct {
	Router   *vserver.Router
	Observer Observer
	Log      *zap.Logger
	// Environ is the parent environment offered to CGI children.
	Environ []string
	Now     func() time.Time
}

// NewServices fills unset collaborators with defaults.
func NewServices(router *vserver.Router, observer Observer, log *zap.Logger) *Services {
	if log == nil {
		log = zap.NewNop()
	}
	if observer == nil {
		observer = NopObserver
	}
	if router == nil {
		router = vserver.NewRouter(log)
	}
	return &Services{
		Router:   router,
		Observer: observer,
		Log:      log,
		Environ:  os.Environ(),
		Now:      time.Now,
	}
}

// State is everything actions may mutate.
type State struct {
	Notifier     reactor.Notifier
	Connections  *ConnectionRepository
	Handlers     *HandlerRepository
	CgiProcesses *CgiProcessRepository
	Services     *Services
}

// NewState creates empty repositories around notifier.
func NewState(notifier reactor.Notifier, svc *Services) *State {
	if svc == nil {
		svc = NewServices(nil, nil, nil)
	}
	return &State{
		Notifier:     notifier,
		Connections:  NewConnectionRepository(),
		Handlers:     NewHandlerRepository(),
		CgiProcesses: NewCgiProcessRepository(),
		Services:     svc,
	}
}

// Close destroys all owned handlers, connections and processes.
func (s *State) Close() {
	s.Handlers.Close()
	s.Connections.Close()
	s.CgiProcesses.Close()
}

// Execute runs actions in order and returns the descriptors they touched.
// Failures are logged; later actions still run.
func (s *State) Execute(actions []*Action) []int {
	var touched []int
	for _, a := range actions {
		if a == nil {
			continue
		}
		if err := a.Execute(s); err != nil {
			s.Services.Log.Warn("action failed",
				zap.Stringer("action", a.Kind),
				zap.Int("fd", a.Fd()),
				zap.Error(err))
		}
		if fd := a.Fd(); fd >= 0 {
			touched = append(touched, fd)
		}
	}
	return touched
}

// Snapshot is a point-in-time view of the reactor state.
type Snapshot struct {
	Time         time.Time        `json:"time"`
	Connections  []ConnectionInfo `json:"connections"`
	Handlers     []HandlerInfo    `json:"handlers"`
	CgiProcesses []CgiProcessInfo `json:"cgi_processes"`
}

type ConnectionInfo struct {
	Fd           int       `json:"fd"`
	ID           string    `json:"id"`
	Local        string    `json:"local"`
	Foreign      string    `json:"foreign"`
	LastActivity time.Time `json:"last_activity"`
}

type HandlerInfo struct {
	Fd      int    `json:"fd"`
	Event   string `json:"event"`
	Handler string `json:"handler"`
}

type CgiProcessInfo struct {
	Pid       int       `json:"pid"`
	ClientFd  int       `json:"client_fd"`
	PeerFd    int       `json:"peer_fd"`
	StartedAt time.Time `json:"started_at"`
	Ended     bool      `json:"ended"`
	Forwarded bool      `json:"forwarded"`
}

// Snapshot copies the repositories for publication to other goroutines.
func (s *State) Snapshot(now time.Time) Snapshot {
	snap := Snapshot{Time: now}
	s.Connections.Range(func(fd int, c *transport.Connection) bool {
		snap.Connections = append(snap.Connections, ConnectionInfo{
			Fd:           fd,
			ID:           c.ID.String(),
			Local:        c.LocalAddress().String(),
			Foreign:      c.ForeignAddress().String(),
			LastActivity: c.LastActivity(),
		})
		return true
	})
	s.Handlers.Range(func(k HandlerKey, h Handler) bool {
		snap.Handlers = append(snap.Handlers, HandlerInfo{Fd: k.Fd, Event: k.Type.String(), Handler: h.Name()})
		return true
	})
	s.CgiProcesses.Range(func(pid int, p *CgiProcess) bool {
		snap.CgiProcesses = append(snap.CgiProcesses, CgiProcessInfo{
			Pid:       pid,
			ClientFd:  p.ClientFd,
			PeerFd:    p.PeerFd,
			StartedAt: p.StartedAt,
			Ended:     p.Ended,
			Forwarded: p.Forwarded,
		})
		return true
	})
	sort.Slice(snap.Connections, func(i, j int) bool { return snap.Connections[i].Fd < snap.Connections[j].Fd })
	sort.Slice(snap.Handlers, func(i, j int) bool {
		if snap.Handlers[i].Fd != snap.Handlers[j].Fd {
			return snap.Handlers[i].Fd < snap.Handlers[j].Fd
		}
		return snap.Handlers[i].Event < snap.Handlers[j].Event
	})
	sort.Slice(snap.CgiProcesses, func(i, j int) bool { return snap.CgiProcesses[i].Pid < snap.CgiProcesses[j].Pid })
	return snap
}
