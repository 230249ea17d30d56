// File: protocol/cgi/response.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package cgi

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/protocol/httpmsg"
)

// DefaultContentType is supplied when a script omits Content-Type.
const DefaultContentType = "text/plain"

// Response is a parsed document response.
type Response struct {
	Status  httpmsg.Status
	Headers httpmsg.Header
	Body    []byte
}

// ParseResponse splits raw script output at the first blank line and turns
// the header block into a Response. A Status header becomes the status and
// is removed from the header set.
func ParseResponse(raw []byte) (Response, error) {
	head, body, ok := splitDocument(raw)
	if !ok {
		return Response{}, api.ErrParse.WithContext("cgi", "missing header terminator")
	}
	headers := httpmsg.Header{}
	for _, line := range strings.Split(string(head), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		name, value, err := httpmsg.ParseHeaderFieldLine(line)
		if err != nil {
			return Response{}, err
		}
		headers.Set(name, value)
	}

	status := httpmsg.StatusOK
	if raw, ok := headers.Get("Status"); ok {
		status = parseStatus(raw)
		headers.Del("Status")
	} else if headers.Has("Location") {
		status = httpmsg.StatusFound
	}
	if !headers.Has("Content-Type") {
		headers.Set("Content-Type", DefaultContentType)
	}
	return Response{Status: status, Headers: headers, Body: body}, nil
}

// HTTPResponse converts the document response to an outbound message.
func (r Response) HTTPResponse() httpmsg.Response {
	b := httpmsg.NewBuilder().Status(r.Status)
	for _, k := range r.Headers.Keys() {
		b.Header(k, r.Headers[k])
	}
	b.Header("Connection", "close")
	return b.Body(r.Body, "").Build()
}

// splitDocument finds the earliest of CRLFCRLF and LFLF.
func splitDocument(raw []byte) (head, body []byte, ok bool) {
	crlf := bytes.Index(raw, []byte("\r\n\r\n"))
	lf := bytes.Index(raw, []byte("\n\n"))
	switch {
	case crlf >= 0 && (lf < 0 || crlf < lf):
		return raw[:crlf], raw[crlf+4:], true
	case lf >= 0:
		return raw[:lf], raw[lf+2:], true
	default:
		return nil, nil, false
	}
}

// parseStatus reads "404 Not Found"; anything unrecognised is 200.
func parseStatus(value string) httpmsg.Status {
	code, _, _ := strings.Cut(strings.TrimSpace(value), " ")
	n, err := strconv.Atoi(code)
	if err != nil {
		return httpmsg.StatusOK
	}
	s, ok := httpmsg.StatusFromInt(n)
	if !ok {
		return httpmsg.StatusOK
	}
	return s
}
