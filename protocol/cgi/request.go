// File: protocol/cgi/request.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package cgi

import (
	"path"
	"strconv"
	"strings"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/protocol/httpmsg"
)

const (
	GatewayInterface = "CGI/1.1"
	ServerSoftware   = "hioload-httpd"
	DefaultPath      = "/usr/local/bin:/usr/bin:/bin"
)

// MetaVariable is one NAME=value pair passed through the environment.
type MetaVariable struct {
	Name  string
	Value string
}

func (m MetaVariable) String() string { return m.Name + "=" + m.Value }

// Params is everything needed to describe one script invocation.
type Params struct {
	Request      httpmsg.Request
	ScriptName   string
	PathInfo     string
	DocumentRoot string
	RemoteAddr   string
	ServerName   string
	ServerPort   string
}

// Request is a validated set of meta variables plus the optional body.
type Request struct {
	variables []MetaVariable
	body      []byte
}

// NewRequest builds the meta-variable list for p.
func NewRequest(p Params) (Request, error) {
	if p.ScriptName == "" || !strings.HasPrefix(p.ScriptName, "/") {
		return Request{}, api.ErrParse.WithContext("script_name", p.ScriptName)
	}
	req := p.Request
	vars := []MetaVariable{
		{"GATEWAY_INTERFACE", GatewayInterface},
		{"SERVER_PROTOCOL", req.Version()},
		{"SERVER_SOFTWARE", ServerSoftware},
	}
	body := req.Body()
	if len(body) > 0 {
		// chunked requests carry no Content-Length, so the decoded size is used
		vars = append(vars, MetaVariable{"CONTENT_LENGTH", strconv.Itoa(len(body))})
		if ct, ok := req.Header("Content-Type"); ok {
			vars = append(vars, MetaVariable{"CONTENT_TYPE", ct})
		}
	}
	vars = append(vars,
		MetaVariable{"REQUEST_METHOD", req.Method().String()},
		MetaVariable{"QUERY_STRING", req.Query()},
		MetaVariable{"SCRIPT_NAME", p.ScriptName},
		MetaVariable{"PATH_INFO", p.PathInfo},
		MetaVariable{"REMOTE_ADDR", p.RemoteAddr},
		MetaVariable{"SERVER_NAME", p.ServerName},
		MetaVariable{"SERVER_PORT", p.ServerPort},
		MetaVariable{"DOCUMENT_ROOT", p.DocumentRoot},
	)
	headers := req.Headers()
	for _, name := range headers.Keys() {
		switch name {
		case "Content-Length", "Content-Type":
			continue
		case "Proxy":
			// HTTP_PROXY would be read as the script's outbound proxy
			continue
		}
		key := "HTTP_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		vars = append(vars, MetaVariable{key, headers[name]})
	}
	return Request{variables: vars, body: body}, nil
}

// Variables returns the meta variables in construction order.
func (r Request) Variables() []MetaVariable { return r.variables }

// Body is the request body forwarded on the script's stdin.
func (r Request) Body() []byte { return r.body }

// HasBody reports whether anything has to be written to the script.
func (r Request) HasBody() bool { return len(r.body) > 0 }

// Lookup returns the value of a meta variable.
func (r Request) Lookup(name string) (string, bool) {
	for _, v := range r.variables {
		if v.Name == name {
			return v.Value, true
		}
	}
	return "", false
}

// ScriptPath is DOCUMENT_ROOT joined with SCRIPT_NAME.
func (r Request) ScriptPath() string {
	root, _ := r.Lookup("DOCUMENT_ROOT")
	script, _ := r.Lookup("SCRIPT_NAME")
	return path.Join(root, script)
}

// Environ returns the child environment: a whitelisted subset of parent
// followed by the meta variables. PATH falls back to DefaultPath.
func (r Request) Environ(parent []string) []string {
	env := make([]string, 0, len(r.variables)+4)
	hasPath := false
	for _, kv := range parent {
		name, _, ok := strings.Cut(kv, "=")
		if !ok || !inheritable(name) {
			continue
		}
		if name == "PATH" {
			hasPath = true
		}
		env = append(env, kv)
	}
	if !hasPath {
		env = append(env, "PATH="+DefaultPath)
	}
	for _, v := range r.variables {
		env = append(env, v.String())
	}
	return env
}

func inheritable(name string) bool {
	switch name {
	case "PATH", "TZ", "LANG":
		return true
	}
	return strings.HasPrefix(name, "LC_")
}

// SplitScriptPath finds the first path segment ending in one of exts and
// splits target there into script name and path info.
func SplitScriptPath(target string, exts []string) (script, pathInfo string, ok bool) {
	pos := 0
	for pos < len(target) {
		end := strings.IndexByte(target[pos+1:], '/')
		if end < 0 {
			end = len(target)
		} else {
			end += pos + 1
		}
		segment := target[:end]
		for _, ext := range exts {
			if ext != "" && strings.HasSuffix(segment, ext) {
				return segment, target[end:], true
			}
		}
		pos = end
	}
	return "", "", false
}
