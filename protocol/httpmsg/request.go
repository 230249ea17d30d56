// File: protocol/httpmsg/request.go
// Author: momentics <momentics@gmail.com>

package httpmsg

import "strings"

// Request is an immutable parsed HTTP request.
type Request struct {
	method  Method
	target  string
	version string
	headers Header
	body    []byte
}

// NewRequest builds a request value. The header map and body are copied.
func NewRequest(method Method, target, version string, headers Header, body []byte) Request {
	b := make([]byte, len(body))
	copy(b, body)
	return Request{method: method, target: target, version: version, headers: headers.Clone(), body: b}
}

func (r Request) Method() Method  { return r.method }
func (r Request) Target() string  { return r.target }
func (r Request) Version() string { return r.version }
func (r Request) Body() []byte    { return r.body }
func (r Request) Headers() Header { return r.headers.Clone() }

// Header returns one header value.
func (r Request) Header(name string) (string, bool) { return r.headers.Get(name) }

// Path is the request target without the query string.
func (r Request) Path() string {
	if i := strings.IndexByte(r.target, '?'); i >= 0 {
		return r.target[:i]
	}
	return r.target
}

// Query is the raw query string without the leading '?'.
func (r Request) Query() string {
	if i := strings.IndexByte(r.target, '?'); i >= 0 {
		return r.target[i+1:]
	}
	return ""
}
