package cgi

import (
	"testing"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/protocol/httpmsg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponseStatusHeader(t *testing.T) {
	raw := []byte("Status: 404 Not Found\r\nContent-Type: text/html\r\n\r\n<html/>")
	res, err := ParseResponse(raw)
	require.NoError(t, err)

	out := res.HTTPResponse()
	assert.Equal(t, httpmsg.StatusNotFound, out.Status())
	ct, ok := out.Header("Content-Type")
	assert.True(t, ok)
	assert.Equal(t, "text/html", ct)
	_, ok = out.Header("Status")
	assert.False(t, ok)
	assert.Equal(t, []byte("<html/>"), out.Body())
}

func TestParseResponseLenientSeparator(t *testing.T) {
	res, err := ParseResponse([]byte("X-Test: 1\n\nbody\n\nmore"))
	require.NoError(t, err)
	assert.Equal(t, httpmsg.StatusOK, res.Status)
	assert.Equal(t, []byte("body\n\nmore"), res.Body)
	ct, _ := res.Headers.Get("Content-Type")
	assert.Equal(t, DefaultContentType, ct)
}

func TestParseResponseLocationImpliesFound(t *testing.T) {
	res, err := ParseResponse([]byte("Location: /elsewhere\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, httpmsg.StatusFound, res.Status)
}

func TestParseResponseInvalidStatusFallsBackToOK(t *testing.T) {
	res, err := ParseResponse([]byte("Status: 799 Weird\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, httpmsg.StatusOK, res.Status)
}

func TestParseResponseErrors(t *testing.T) {
	_, err := ParseResponse([]byte("Content-Type: text/plain\r\n"))
	assert.ErrorIs(t, err, api.ErrParse)

	_, err = ParseResponse([]byte("bad header line\r\n\r\n"))
	assert.ErrorIs(t, err, api.ErrParse)
}

func newHTTPRequest(method httpmsg.Method, target string, headers httpmsg.Header, body string) httpmsg.Request {
	return httpmsg.NewRequest(method, target, "HTTP/1.1", headers, []byte(body))
}

func TestNewRequestVariables(t *testing.T) {
	headers := httpmsg.Header{}
	headers.Set("Host", "example.com")
	headers.Set("Content-Type", "text/plain")
	headers.Set("X-Trace-Id", "abc")
	req, err := NewRequest(Params{
		Request:      newHTTPRequest(httpmsg.MethodPost, "/cgi/echo.sh/extra?a=1", headers, "hello"),
		ScriptName:   "/cgi/echo.sh",
		PathInfo:     "/extra",
		DocumentRoot: "/srv/www",
		RemoteAddr:   "10.0.0.1",
		ServerName:   "example.com",
		ServerPort:   "8080",
	})
	require.NoError(t, err)

	expect := map[string]string{
		"GATEWAY_INTERFACE": "CGI/1.1",
		"SERVER_PROTOCOL":   "HTTP/1.1",
		"REQUEST_METHOD":    "POST",
		"QUERY_STRING":      "a=1",
		"SCRIPT_NAME":       "/cgi/echo.sh",
		"PATH_INFO":         "/extra",
		"CONTENT_LENGTH":    "5",
		"CONTENT_TYPE":      "text/plain",
		"REMOTE_ADDR":       "10.0.0.1",
		"SERVER_NAME":       "example.com",
		"SERVER_PORT":       "8080",
		"HTTP_HOST":         "example.com",
		"HTTP_X_TRACE_ID":   "abc",
	}
	for name, value := range expect {
		got, ok := req.Lookup(name)
		assert.True(t, ok, name)
		assert.Equal(t, value, got, name)
	}
	_, ok := req.Lookup("HTTP_CONTENT_TYPE")
	assert.False(t, ok)
	assert.True(t, req.HasBody())
	assert.Equal(t, "/srv/www/cgi/echo.sh", req.ScriptPath())
}

func TestNewRequestWithoutBodyOmitsContentVariables(t *testing.T) {
	req, err := NewRequest(Params{
		Request:    newHTTPRequest(httpmsg.MethodGet, "/a.sh", httpmsg.Header{}, ""),
		ScriptName: "/a.sh",
	})
	require.NoError(t, err)
	_, ok := req.Lookup("CONTENT_LENGTH")
	assert.False(t, ok)
	_, ok = req.Lookup("CONTENT_TYPE")
	assert.False(t, ok)
	assert.False(t, req.HasBody())
}

func TestNewRequestDropsProxyHeader(t *testing.T) {
	headers := httpmsg.Header{}
	headers.Set("Host", "example.com")
	headers.Set("proxy", "http://attacker.example:8080")
	req, err := NewRequest(Params{
		Request:    newHTTPRequest(httpmsg.MethodGet, "/a.sh", headers, ""),
		ScriptName: "/a.sh",
	})
	require.NoError(t, err)
	_, ok := req.Lookup("HTTP_PROXY")
	assert.False(t, ok)
	_, ok = req.Lookup("HTTP_HOST")
	assert.True(t, ok)
}

func TestNewRequestRejectsRelativeScript(t *testing.T) {
	_, err := NewRequest(Params{Request: newHTTPRequest(httpmsg.MethodGet, "/", httpmsg.Header{}, ""), ScriptName: "a.sh"})
	assert.ErrorIs(t, err, api.ErrParse)
}

func TestEnvironWhitelist(t *testing.T) {
	req, err := NewRequest(Params{Request: newHTTPRequest(httpmsg.MethodGet, "/a.sh", httpmsg.Header{}, ""), ScriptName: "/a.sh"})
	require.NoError(t, err)

	env := req.Environ([]string{"HOME=/root", "TZ=UTC", "LC_ALL=C", "SECRET=x"})
	assert.Contains(t, env, "TZ=UTC")
	assert.Contains(t, env, "LC_ALL=C")
	assert.Contains(t, env, "PATH="+DefaultPath)
	assert.NotContains(t, env, "HOME=/root")
	assert.NotContains(t, env, "SECRET=x")
	assert.Contains(t, env, "SCRIPT_NAME=/a.sh")

	env = req.Environ([]string{"PATH=/opt/bin"})
	assert.Contains(t, env, "PATH=/opt/bin")
	assert.NotContains(t, env, "PATH="+DefaultPath)
}

func TestSplitScriptPath(t *testing.T) {
	tests := []struct {
		target, script, info string
		ok                   bool
	}{
		{"/cgi/run.py", "/cgi/run.py", "", true},
		{"/cgi/run.py/a/b", "/cgi/run.py", "/a/b", true},
		{"/cgi/dir.py/run.sh", "/cgi/dir.py", "/run.sh", true},
		{"/static/index.html", "", "", false},
	}
	for _, tt := range tests {
		script, info, ok := SplitScriptPath(tt.target, []string{".py", ".sh"})
		assert.Equal(t, tt.ok, ok, tt.target)
		assert.Equal(t, tt.script, script, tt.target)
		assert.Equal(t, tt.info, info, tt.target)
	}
}
