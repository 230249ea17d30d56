// File: vserver/router.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Location matching and dispatch of a parsed request.

package vserver

import (
	"errors"
	"html"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/momentics/hioload-httpd/config"
	"github.com/momentics/hioload-httpd/protocol/cgi"
	"github.com/momentics/hioload-httpd/protocol/httpmsg"
	"go.uber.org/zap"
)

// RouteKind tells the caller what to do with a request.
type RouteKind int

const (
	// RouteRespond carries a ready response.
	RouteRespond RouteKind = iota
	// RouteCgi asks for a CGI invocation.
	RouteCgi
)

// CgiTarget names the script a request resolved to.
type CgiTarget struct {
	ScriptName   string
	PathInfo     string
	DocumentRoot string
}

// Route is the outcome of routing one request.
type Route struct {
	Kind     RouteKind
	Response httpmsg.Response
	Cgi      CgiTarget
	Location *config.LocationContext
}

// Router dispatches requests within one virtual server.
type Router struct {
	log *zap.Logger
}

// NewRouter creates a router; log may be nil.
func NewRouter(log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{log: log}
}

// MatchLocation returns the location with the longest path prefix of p.
func MatchLocation(server config.ServerContext, p string) (*config.LocationContext, bool) {
	var best *config.LocationContext
	for i := range server.Locations {
		loc := &server.Locations[i]
		if !prefixMatch(loc.Path, p) {
			continue
		}
		if best == nil || len(loc.Path) > len(best.Path) {
			best = loc
		}
	}
	return best, best != nil
}

func prefixMatch(prefix, p string) bool {
	if !strings.HasPrefix(p, prefix) {
		return false
	}
	return len(p) == len(prefix) || strings.HasSuffix(prefix, "/") || p[len(prefix)] == '/'
}

// Route resolves req against server.
func (r *Router) Route(server config.ServerContext, req httpmsg.Request) Route {
	p := path.Clean("/" + req.Path())
	loc, ok := MatchLocation(server, p)
	if !ok {
		return respond(nil, ErrorPage(server, httpmsg.StatusNotFound))
	}
	if loc.Redirect != "" {
		res := httpmsg.NewBuilder().
			Status(httpmsg.StatusMovedPermanently).
			Header("Location", loc.Redirect).
			Header("Connection", "close").
			Build()
		return respond(loc, res)
	}
	method := req.Method().String()
	if !loc.Allows(method) {
		res := ErrorPage(server, httpmsg.StatusMethodNotAllowed)
		return respond(loc, withHeader(res, "Allow", strings.Join(loc.AllowedMethods, ", ")))
	}
	if script, info, ok := cgi.SplitScriptPath(p, loc.CgiExtensions); ok {
		return Route{Kind: RouteCgi, Location: loc, Cgi: CgiTarget{
			ScriptName:   script,
			PathInfo:     info,
			DocumentRoot: loc.Root,
		}}
	}

	switch req.Method() {
	case httpmsg.MethodGet:
		return respond(loc, r.serveFile(server, loc, p))
	case httpmsg.MethodDelete:
		return respond(loc, r.deleteFile(server, loc, p))
	default:
		// uploads are only accepted by scripts
		return respond(loc, ErrorPage(server, httpmsg.StatusMethodNotAllowed))
	}
}

func respond(loc *config.LocationContext, res httpmsg.Response) Route {
	return Route{Kind: RouteRespond, Response: res, Location: loc}
}

func (r *Router) serveFile(server config.ServerContext, loc *config.LocationContext, p string) httpmsg.Response {
	full := filepath.Join(loc.Root, filepath.FromSlash(p))
	info, err := os.Stat(full)
	if err != nil {
		return ErrorPage(server, statusForFSError(err))
	}
	if info.IsDir() {
		index := filepath.Join(full, loc.Index)
		if st, err := os.Stat(index); err == nil && !st.IsDir() {
			return fileResponse(server, index)
		}
		if loc.Autoindex {
			return r.listDirectory(server, full, p)
		}
		return ErrorPage(server, httpmsg.StatusForbidden)
	}
	return fileResponse(server, full)
}

func (r *Router) deleteFile(server config.ServerContext, loc *config.LocationContext, p string) httpmsg.Response {
	full := filepath.Join(loc.Root, filepath.FromSlash(p))
	info, err := os.Stat(full)
	if err != nil {
		return ErrorPage(server, statusForFSError(err))
	}
	if info.IsDir() {
		return ErrorPage(server, httpmsg.StatusForbidden)
	}
	if err := os.Remove(full); err != nil {
		r.log.Warn("delete failed", zap.String("path", full), zap.Error(err))
		return ErrorPage(server, statusForFSError(err))
	}
	return httpmsg.NewBuilder().Status(httpmsg.StatusNoContent).Header("Connection", "close").Build()
}

func (r *Router) listDirectory(server config.ServerContext, dir, p string) httpmsg.Response {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ErrorPage(server, statusForFSError(err))
	}
	var b strings.Builder
	title := html.EscapeString("Index of " + p)
	b.WriteString("<html><head><title>" + title + "</title></head><body><h1>" + title + "</h1><ul>\n")
	base := strings.TrimSuffix(p, "/")
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		b.WriteString(`<li><a href="` + html.EscapeString(base+"/"+name) + `">` + html.EscapeString(name) + "</a></li>\n")
	}
	b.WriteString("</ul></body></html>\n")
	return httpmsg.NewBuilder().
		Header("Connection", "close").
		Body([]byte(b.String()), "text/html").
		Build()
}

func fileResponse(server config.ServerContext, full string) httpmsg.Response {
	data, err := os.ReadFile(full)
	if err != nil {
		return ErrorPage(server, statusForFSError(err))
	}
	return httpmsg.NewBuilder().
		Header("Connection", "close").
		Body(data, contentType(full)).
		Build()
}

// ErrorPage builds the response for status, using the server's configured
// error page when one is readable.
func ErrorPage(server config.ServerContext, status httpmsg.Status) httpmsg.Response {
	page, ok := server.ErrorPages[strconv.Itoa(int(status))]
	if ok {
		if loc, found := MatchLocation(server, page); found && loc.Root != "" {
			data, err := os.ReadFile(filepath.Join(loc.Root, filepath.FromSlash(path.Clean("/"+page))))
			if err == nil {
				return httpmsg.NewBuilder().
					Status(status).
					Header("Connection", "close").
					Body(data, contentType(page)).
					Build()
			}
		}
	}
	return httpmsg.ErrorResponse(status)
}

func withHeader(res httpmsg.Response, name, value string) httpmsg.Response {
	b := httpmsg.NewBuilder().Status(res.Status())
	headers := res.Headers()
	for _, k := range headers.Keys() {
		b.Header(k, headers[k])
	}
	b.Header(name, value)
	return b.Body(res.Body(), "").Build()
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func statusForFSError(err error) httpmsg.Status {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return httpmsg.StatusNotFound
	case errors.Is(err, fs.ErrPermission):
		return httpmsg.StatusForbidden
	default:
		return httpmsg.StatusInternalServerError
	}
}
