// File: vserver/resolver.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package vserver

import (
	"github.com/momentics/hioload-httpd/config"
	"github.com/momentics/hioload-httpd/protocol/httpmsg"
	"github.com/momentics/hioload-httpd/transport"
)

// VirtualServer is one configured (host, port, routing) unit.
type VirtualServer struct {
	Config config.ServerContext
	Bind   transport.Address
}

// NewVirtualServer derives the bind address from cfg.
func NewVirtualServer(cfg config.ServerContext) VirtualServer {
	return VirtualServer{Config: cfg, Bind: transport.NewAddress(cfg.Host, cfg.Port)}
}

// IsSpecificFor reports whether the server is bound exactly to local.
func (v VirtualServer) IsSpecificFor(local transport.Address) bool {
	return v.Bind.Port == local.Port && v.Bind.IP == local.IP && !v.Bind.IsWildcard()
}

// IsWildcardFor reports whether the server listens on all addresses of
// local's port.
func (v VirtualServer) IsWildcardFor(local transport.Address) bool {
	return v.Bind.Port == local.Port && v.Bind.IsWildcard()
}

// IsMatch reports whether host is one of the server names.
func (v VirtualServer) IsMatch(host string) bool {
	return v.Config.HasServerName(host)
}

// Resolver picks a virtual server for connections accepted on one local
// address.
type Resolver struct {
	candidates []VirtualServer
}

// Resolve returns the server whose name matches host (port stripped),
// falling back to the first candidate.
func (r *Resolver) Resolve(host string) (config.ServerContext, bool) {
	if len(r.candidates) == 0 {
		return config.ServerContext{}, false
	}
	name := httpmsg.HostWithoutPort(host)
	for _, v := range r.candidates {
		if v.IsMatch(name) {
			return v.Config, true
		}
	}
	return r.candidates[0].Config, true
}

// Candidates returns the servers that survived address filtering.
func (r *Resolver) Candidates() []VirtualServer { return r.candidates }

// ResolverFactory builds per-connection resolvers from the configured
// servers, kept in registration order.
type ResolverFactory struct {
	servers []VirtualServer
}

// NewResolverFactory wraps the configured servers.
func NewResolverFactory(servers []config.ServerContext) *ResolverFactory {
	vs := make([]VirtualServer, 0, len(servers))
	for _, s := range servers {
		vs = append(vs, NewVirtualServer(s))
	}
	return &ResolverFactory{servers: vs}
}

// Create filters the servers for local. Specific binds win over wildcard
// binds and the two sets are never merged.
func (f *ResolverFactory) Create(local transport.Address) *Resolver {
	var specific, wildcard []VirtualServer
	for _, v := range f.servers {
		switch {
		case v.IsSpecificFor(local):
			specific = append(specific, v)
		case v.IsWildcardFor(local):
			wildcard = append(wildcard, v)
		}
	}
	if len(specific) > 0 {
		return &Resolver{candidates: specific}
	}
	return &Resolver{candidates: wildcard}
}

// ListenAddresses returns the distinct addresses to bind. A wildcard
// server on a port covers every specific server on that port.
func (f *ResolverFactory) ListenAddresses() []transport.Address {
	wildcardPorts := make(map[uint16]bool)
	for _, v := range f.servers {
		if v.Bind.IsWildcard() {
			wildcardPorts[v.Bind.Port] = true
		}
	}
	seen := make(map[transport.Address]bool)
	var out []transport.Address
	for _, v := range f.servers {
		addr := v.Bind
		if wildcardPorts[addr.Port] {
			addr = transport.NewAddress(transport.WildcardHost, addr.Port)
		}
		if seen[addr] {
			continue
		}
		seen[addr] = true
		out = append(out, addr)
	}
	return out
}
