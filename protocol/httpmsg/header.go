// File: protocol/httpmsg/header.go
// Author: momentics <momentics@gmail.com>

package httpmsg

import (
	"net/textproto"
	"sort"
	"strings"
)

// Header maps canonical field names to a single value.
type Header map[string]string

// Get returns the value for name, case-insensitively.
func (h Header) Get(name string) (string, bool) {
	v, ok := h[textproto.CanonicalMIMEHeaderKey(name)]
	return v, ok
}

// Set stores value under the canonical form of name.
func (h Header) Set(name, value string) {
	h[textproto.CanonicalMIMEHeaderKey(name)] = value
}

// Del removes name.
func (h Header) Del(name string) {
	delete(h, textproto.CanonicalMIMEHeaderKey(name))
}

// Has reports whether name is present.
func (h Header) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// Clone returns a copy.
func (h Header) Clone() Header {
	out := make(Header, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Keys returns the field names in sorted order.
func (h Header) Keys() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HostWithoutPort strips an optional ":port" suffix from a Host value.
// Bracketed IPv6 literals keep their brackets.
func HostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	i := strings.LastIndexByte(host, ':')
	if i < 0 || strings.LastIndexByte(host, ']') > i {
		return host
	}
	return host[:i]
}
