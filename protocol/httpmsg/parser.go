// File: protocol/httpmsg/parser.go
// Author: momentics <momentics@gmail.com>
//
// Pure validator for request-line and header-field shape (RFC 9112).

package httpmsg

import (
	"strings"

	"github.com/momentics/hioload-httpd/api"
)

// ParseRequest validates the raw pieces gathered by the reader and builds
// the immutable Request.
func ParseRequest(requestLine string, rawHeaders []string, body []byte) (Request, error) {
	method, target, version, err := ParseRequestLine(requestLine)
	if err != nil {
		return Request{}, err
	}
	headers := make(Header, len(rawHeaders))
	for _, line := range rawHeaders {
		name, value, err := ParseHeaderFieldLine(line)
		if err != nil {
			return Request{}, err
		}
		if !headers.Has(name) {
			headers.Set(name, value)
		}
	}
	return NewRequest(method, target, version, headers, body), nil
}

// ParseRequestLine splits "method SP request-target SP HTTP-version".
func ParseRequestLine(line string) (Method, string, string, error) {
	first := strings.IndexByte(line, ' ')
	last := strings.LastIndexByte(line, ' ')
	if first < 0 || first == last {
		return MethodUnknown, "", "", api.ErrParse.WithContext("request_line", line)
	}
	rawMethod := line[:first]
	target := line[first+1 : last]
	version := line[last+1:]

	method := ParseMethod(rawMethod)
	if method == MethodUnknown {
		return MethodUnknown, "", "", api.ErrParse.WithContext("method", rawMethod)
	}
	if target == "" || strings.ContainsAny(target, " \t") {
		return MethodUnknown, "", "", api.ErrParse.WithContext("target", target)
	}
	if !IsValidHTTPVersion(version) {
		return MethodUnknown, "", "", api.ErrParse.WithContext("version", version)
	}
	return method, target, version, nil
}

// ParseHeaderFieldLine splits "field-name: OWS field-value OWS".
func ParseHeaderFieldLine(line string) (string, string, error) {
	colon := strings.IndexByte(line, ':')
	if colon < 0 {
		return "", "", api.ErrParse.WithContext("header", line)
	}
	name := line[:colon]
	if !IsValidFieldName(name) {
		return "", "", api.ErrParse.WithContext("field_name", name)
	}
	value := strings.Trim(line[colon+1:], " \t")
	if !IsValidFieldValue(value) {
		return "", "", api.ErrParse.WithContext("field_value", value)
	}
	return name, value, nil
}

// IsValidFieldName reports whether s is a token.
func IsValidFieldName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isTchar(s[i]) {
			return false
		}
	}
	return true
}

// IsValidFieldValue reports whether s is a trimmed field-value.
func IsValidFieldValue(s string) bool {
	if s == "" {
		return true
	}
	if s[0] == ' ' || s[0] == '\t' || s[len(s)-1] == ' ' || s[len(s)-1] == '\t' {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\t' || (c >= 0x20 && c < 0x7f) || c >= 0x80 {
			continue
		}
		return false
	}
	return true
}

// IsValidHTTPVersion accepts "HTTP/" DIGIT "." DIGIT.
func IsValidHTTPVersion(s string) bool {
	return len(s) == 8 && strings.HasPrefix(s, "HTTP/") &&
		isDigit(s[5]) && s[6] == '.' && isDigit(s[7])
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isTchar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', isDigit(c):
		return true
	}
	return strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0
}
