// File: core/repository.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package core

import (
	"sort"
	"time"

	"github.com/momentics/hioload-httpd/reactor"
	"github.com/momentics/hioload-httpd/transport"
)

// Repository is a keyed map that owns its values. Set destroys the value
// previously stored under the same key before installing the new one, and
// Close destroys everything left.
type Repository[K comparable, V any] struct {
	items   map[K]V
	destroy func(K, V)
}

// NewRepository creates a repository; destroy may be nil.
func NewRepository[K comparable, V any](destroy func(K, V)) *Repository[K, V] {
	if destroy == nil {
		destroy = func(K, V) {}
	}
	return &Repository[K, V]{items: make(map[K]V), destroy: destroy}
}

// Get returns the value under key.
func (r *Repository[K, V]) Get(key K) (V, bool) {
	v, ok := r.items[key]
	return v, ok
}

// Has reports whether key is present.
func (r *Repository[K, V]) Has(key K) bool {
	_, ok := r.items[key]
	return ok
}

// Set stores v under key, destroying any previous value first.
func (r *Repository[K, V]) Set(key K, v V) {
	if old, ok := r.items[key]; ok {
		delete(r.items, key)
		r.destroy(key, old)
	}
	r.items[key] = v
}

// Remove destroys and deletes the value under key.
func (r *Repository[K, V]) Remove(key K) bool {
	old, ok := r.items[key]
	if !ok {
		return false
	}
	delete(r.items, key)
	r.destroy(key, old)
	return true
}

// Take deletes the value under key without destroying it and hands
// ownership to the caller.
func (r *Repository[K, V]) Take(key K) (V, bool) {
	v, ok := r.items[key]
	if ok {
		delete(r.items, key)
	}
	return v, ok
}

// Len returns the number of stored values.
func (r *Repository[K, V]) Len() int { return len(r.items) }

// Range calls fn for every entry until fn returns false. fn must not
// mutate the repository.
func (r *Repository[K, V]) Range(fn func(K, V) bool) {
	for k, v := range r.items {
		if !fn(k, v) {
			return
		}
	}
}

// Close destroys every value.
func (r *Repository[K, V]) Close() {
	for k, v := range r.items {
		delete(r.items, k)
		r.destroy(k, v)
	}
}

// ConnectionRepository owns connections by descriptor.
type ConnectionRepository struct {
	*Repository[int, *transport.Connection]
}

// NewConnectionRepository closes connections on destroy.
func NewConnectionRepository() *ConnectionRepository {
	return &ConnectionRepository{NewRepository(func(_ int, c *transport.Connection) {
		_ = c.Close()
	})}
}

// TimedOutFds returns, in ascending order, the descriptors idle for longer
// than timeout at now, skipping those in exclude.
func (r *ConnectionRepository) TimedOutFds(now time.Time, timeout time.Duration, exclude map[int]struct{}) []int {
	var fds []int
	r.Range(func(fd int, c *transport.Connection) bool {
		if _, skip := exclude[fd]; skip {
			return true
		}
		if now.Sub(c.LastActivity()) > timeout {
			fds = append(fds, fd)
		}
		return true
	})
	sort.Ints(fds)
	return fds
}

// HandlerKey identifies the single handler owning one direction of a
// descriptor.
type HandlerKey struct {
	Fd   int
	Type reactor.EventType
}

// HandlerRepository owns handlers by (descriptor, direction).
type HandlerRepository struct {
	*Repository[HandlerKey, Handler]
}

// NewHandlerRepository closes handlers on destroy.
func NewHandlerRepository() *HandlerRepository {
	return &HandlerRepository{NewRepository(func(_ HandlerKey, h Handler) {
		h.Close()
	})}
}

// CgiProcessRepository owns running CGI children by pid. Destroying a
// record of a child that has not exited kills it.
type CgiProcessRepository struct {
	*Repository[int, *CgiProcess]
}

// NewCgiProcessRepository creates the repository.
func NewCgiProcessRepository() *CgiProcessRepository {
	return &CgiProcessRepository{NewRepository(func(_ int, p *CgiProcess) {
		p.Kill()
	})}
}

// TimedOut returns, in ascending order, pids of children running longer
// than timeout at now.
func (r *CgiProcessRepository) TimedOut(now time.Time, timeout time.Duration) []int {
	var pids []int
	r.Range(func(pid int, p *CgiProcess) bool {
		if !p.Ended && now.Sub(p.StartedAt) > timeout {
			pids = append(pids, pid)
		}
		return true
	})
	sort.Ints(pids)
	return pids
}

// InFlightFds returns client and peer descriptors of children whose
// response has not been forwarded yet.
func (r *CgiProcessRepository) InFlightFds() map[int]struct{} {
	fds := make(map[int]struct{})
	r.Range(func(_ int, p *CgiProcess) bool {
		if !p.Forwarded {
			fds[p.ClientFd] = struct{}{}
			fds[p.PeerFd] = struct{}{}
		}
		return true
	})
	return fds
}
