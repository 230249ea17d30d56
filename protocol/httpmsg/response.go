// File: protocol/httpmsg/response.go
// Author: momentics <momentics@gmail.com>

package httpmsg

import (
	"bytes"
	"fmt"
	"strconv"
)

// Response is an immutable outbound response.
type Response struct {
	status  Status
	headers Header
	body    []byte
}

func (r Response) Status() Status  { return r.status }
func (r Response) Headers() Header { return r.headers.Clone() }
func (r Response) Body() []byte    { return r.body }

// Header returns one header value.
func (r Response) Header(name string) (string, bool) { return r.headers.Get(name) }

// Bytes serializes the response as an HTTP/1.1 message. Content-Length is
// always derived from the body.
func (r Response) Bytes() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", int(r.status), r.status.Reason())
	for _, k := range r.headers.Keys() {
		if k == "Content-Length" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\r\n", k, r.headers[k])
	}
	fmt.Fprintf(&b, "Content-Length: %d\r\n\r\n", len(r.body))
	b.Write(r.body)
	return b.Bytes()
}

// Builder assembles a Response.
type Builder struct {
	status  Status
	headers Header
	body    []byte
}

// NewBuilder starts a 200 response.
func NewBuilder() *Builder {
	return &Builder{status: StatusOK, headers: Header{}}
}

func (b *Builder) Status(s Status) *Builder {
	b.status = s
	return b
}

func (b *Builder) Header(name, value string) *Builder {
	b.headers.Set(name, value)
	return b
}

// Body sets the payload together with its Content-Type.
func (b *Builder) Body(body []byte, contentType string) *Builder {
	b.body = body
	if contentType != "" {
		b.headers.Set("Content-Type", contentType)
	}
	return b
}

// Build returns the immutable response.
func (b *Builder) Build() Response {
	body := make([]byte, len(b.body))
	copy(body, b.body)
	return Response{status: b.status, headers: b.headers.Clone(), body: body}
}

// ErrorResponse is a small HTML page for s with Connection: close.
func ErrorResponse(s Status) Response {
	text := strconv.Itoa(int(s)) + " " + s.Reason()
	body := "<html><head><title>" + text + "</title></head><body><h1>" + text + "</h1></body></html>\n"
	return NewBuilder().
		Status(s).
		Header("Connection", "close").
		Body([]byte(body), "text/html").
		Build()
}
