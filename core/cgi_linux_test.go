//go:build linux

package core_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/momentics/hioload-httpd/core"
	"github.com/momentics/hioload-httpd/fake"
	"github.com/momentics/hioload-httpd/protocol/cgi"
	"github.com/momentics/hioload-httpd/protocol/httpmsg"
	"github.com/momentics/hioload-httpd/reactor"
	"github.com/momentics/hioload-httpd/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, root, name, body string, mode os.FileMode) {
	t.Helper()
	full := filepath.Join(root, "cgi", name)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte("#!/bin/sh\n"+body), mode))
}

func (h *harness) cgiRequest(t *testing.T, method httpmsg.Method, script string, body []byte) cgi.Request {
	t.Helper()
	header := httpmsg.Header{}
	header.Set("Host", "example.test")
	if body != nil {
		header.Set("Content-Type", "text/plain")
	}
	req, err := cgi.NewRequest(cgi.Params{
		Request:      httpmsg.NewRequest(method, "/cgi/"+script, "HTTP/1.1", header, body),
		ScriptName:   "/cgi/" + script,
		DocumentRoot: h.site.root,
		RemoteAddr:   "10.0.0.9",
		ServerName:   "example.test",
		ServerPort:   "8080",
	})
	require.NoError(t, err)
	return req
}

// runCgi starts req for a fresh client and returns the client descriptor
// and the test's end of the client socket.
func (h *harness) runCgi(t *testing.T, req cgi.Request) (int, int) {
	t.Helper()
	conn, peer := clientConn(t, h.site.local, fake.NewSource())
	fd := conn.Fd()
	h.state.Connections.Set(fd, conn)
	h.state.Execute([]*core.Action{core.RunCgi(fd, req)})
	return fd, peer
}

func (h *harness) peerOf(clientFd int) (int, bool) {
	peer := -1
	h.state.CgiProcesses.Range(func(_ int, p *core.CgiProcess) bool {
		if p.ClientFd == clientFd {
			peer = p.PeerFd
			return false
		}
		return true
	})
	return peer, peer >= 0
}

// pump drives the CGI peer handlers until a response writer is installed
// on the client.
func (h *harness) pump(t *testing.T, clientFd int) {
	t.Helper()
	responder := core.HandlerKey{Fd: clientFd, Type: reactor.EventWrite}
	require.Eventually(t, func() bool {
		if h.state.Handlers.Has(responder) {
			return true
		}
		peer, ok := h.peerOf(clientFd)
		if !ok {
			return false
		}
		for _, typ := range reactor.Directions {
			handler, ok := h.state.Handlers.Get(core.HandlerKey{Fd: peer, Type: typ})
			if !ok {
				continue
			}
			actions, err := handler.Invoke(h.ctx(peer, typ))
			if err != nil {
				continue
			}
			h.state.Execute(actions)
		}
		return h.state.Handlers.Has(responder)
	}, 5*time.Second, 5*time.Millisecond)
}

// respond runs the client's response writer to completion.
func (h *harness) respond(t *testing.T, clientFd, peer int) string {
	t.Helper()
	actions, err := h.invoke(t, clientFd, reactor.EventWrite)
	require.NoError(t, err)
	h.state.Execute(actions)
	return readAll(t, peer)
}

func TestCgiOutputIsForwarded(t *testing.T) {
	h := newHarness(t)
	writeScript(t, h.site.root, "hello.sh", `printf 'Content-Type: text/plain\r\nX-Method: %s\r\n\r\nhi' "$REQUEST_METHOD"`, 0o755)

	fd, peer := h.runCgi(t, h.cgiRequest(t, httpmsg.MethodGet, "hello.sh", nil))
	h.pump(t, fd)
	out := h.respond(t, fd, peer)

	assert.Contains(t, out, "HTTP/1.1 200 OK\r\n")
	assert.Contains(t, out, "X-Method: GET\r\n")
	assert.Contains(t, out, "\r\n\r\nhi")
	assert.False(t, h.state.Connections.Has(fd))
}

func TestCgiReceivesBody(t *testing.T) {
	h := newHarness(t)
	writeScript(t, h.site.root, "echo.sh", `printf 'Content-Type: text/plain\r\n\r\n'; cat`, 0o755)

	fd, peer := h.runCgi(t, h.cgiRequest(t, httpmsg.MethodPost, "echo.sh", []byte("payload")))
	h.pump(t, fd)
	out := h.respond(t, fd, peer)

	assert.Contains(t, out, "HTTP/1.1 200 OK\r\n")
	assert.Contains(t, out, "\r\n\r\npayload")
}

func TestCgiStatusHeader(t *testing.T) {
	h := newHarness(t)
	writeScript(t, h.site.root, "missing.sh", `printf 'Status: 404 Not Found\r\nContent-Type: text/html\r\n\r\ngone'`, 0o755)

	fd, peer := h.runCgi(t, h.cgiRequest(t, httpmsg.MethodGet, "missing.sh", nil))
	h.pump(t, fd)
	out := h.respond(t, fd, peer)
	assert.Contains(t, out, "HTTP/1.1 404 Not Found\r\n")
	assert.NotContains(t, out, "Status:")
}

func TestCgiBadOutput(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status string
	}{
		{"empty", "exit 0", "502 Bad Gateway"},
		{"no separator", "printf 'garbage'", "502 Bad Gateway"},
		{"exit 127 without output", "exit 127", "404 Not Found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			writeScript(t, h.site.root, "bad.sh", tt.body, 0o755)
			fd, peer := h.runCgi(t, h.cgiRequest(t, httpmsg.MethodGet, "bad.sh", nil))
			h.pump(t, fd)
			assert.Contains(t, h.respond(t, fd, peer), "HTTP/1.1 "+tt.status+"\r\n")
		})
	}
}

func TestCgiSpawnFailures(t *testing.T) {
	h := newHarness(t)
	writeScript(t, h.site.root, "plain.sh", "echo no", 0o644)

	fd, peer := h.runCgi(t, h.cgiRequest(t, httpmsg.MethodGet, "absent.sh", nil))
	assert.Zero(t, h.state.CgiProcesses.Len())
	assert.Contains(t, h.respond(t, fd, peer), "HTTP/1.1 404 Not Found\r\n")

	fd, peer = h.runCgi(t, h.cgiRequest(t, httpmsg.MethodGet, "plain.sh", nil))
	assert.Zero(t, h.state.CgiProcesses.Len())
	assert.Contains(t, h.respond(t, fd, peer), "HTTP/1.1 403 Forbidden\r\n")
}

func startSleeper(t *testing.T) *exec.Cmd {
	t.Helper()
	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})
	return cmd
}

func TestSweepTimesOutCgi(t *testing.T) {
	h := newHarness(t)
	client, clientPeer := clientConn(t, h.site.local, fake.NewSource())
	cgiPeer, _ := clientConn(t, h.site.local, fake.NewSource())
	h.state.Connections.Set(client.Fd(), client)
	h.state.Connections.Set(cgiPeer.Fd(), cgiPeer)

	cmd := startSleeper(t)
	now := time.Now()
	proc := &core.CgiProcess{Pid: cmd.Process.Pid, ClientFd: client.Fd(), PeerFd: cgiPeer.Fd(), StartedAt: now.Add(-time.Hour)}
	h.state.CgiProcesses.Set(proc.Pid, proc)

	actions := core.Sweep(h.state, now, core.Timeouts{Client: time.Minute, Cgi: time.Second}, nil)
	h.state.Execute(actions)

	assert.Zero(t, h.state.CgiProcesses.Len())
	assert.False(t, h.state.Connections.Has(proc.PeerFd))
	assert.Contains(t, h.respond(t, proc.ClientFd, clientPeer), "HTTP/1.1 504 Gateway Timeout\r\n")

	err := cmd.Wait()
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, syscall.SIGKILL, exitErr.Sys().(syscall.WaitStatus).Signal())
}

func TestSweepIdleClients(t *testing.T) {
	h := newHarness(t)
	now := time.Now()
	idle, _ := clientConn(t, h.site.local, fake.NewSource())
	busy, _ := clientConn(t, h.site.local, fake.NewSource())
	waiting, _ := clientConn(t, h.site.local, fake.NewSource())
	for _, c := range []*transport.Connection{idle, busy, waiting} {
		c.Touch(now.Add(-time.Hour))
	}
	h.state.Connections.Set(idle.Fd(), idle)
	h.state.Connections.Set(busy.Fd(), busy)
	h.state.Connections.Set(waiting.Fd(), waiting)

	cmd := startSleeper(t)
	h.state.CgiProcesses.Set(cmd.Process.Pid, &core.CgiProcess{Pid: cmd.Process.Pid, ClientFd: waiting.Fd(), PeerFd: -1, StartedAt: now})

	actions := core.Sweep(h.state, now, core.Timeouts{Client: time.Minute, Cgi: time.Minute}, map[int]struct{}{busy.Fd(): {}})
	h.state.Execute(actions)

	assert.False(t, h.state.Connections.Has(idle.Fd()))
	assert.True(t, h.state.Connections.Has(busy.Fd()))
	assert.True(t, h.state.Connections.Has(waiting.Fd()))
	assert.Equal(t, 1, h.state.CgiProcesses.Len())
}

func TestHandleReapedWakesPeer(t *testing.T) {
	h := newHarness(t)
	peer, _ := clientConn(t, h.site.local, fake.NewSource())
	h.state.Connections.Set(peer.Fd(), peer)
	h.state.CgiProcesses.Set(100001, &core.CgiProcess{Pid: 100001, ClientFd: -1, PeerFd: peer.Fd()})

	actions := core.HandleReaped(h.state, []core.Reaped{{Pid: 100001, ExitCode: 3}})
	h.state.Execute(actions)

	proc, ok := h.state.CgiProcesses.Get(100001)
	require.True(t, ok)
	assert.True(t, proc.Ended)
	assert.Equal(t, 3, proc.ExitCode)
	assert.Equal(t, 1, h.n.PendingPseudo())
}

func TestHandleReapedWithoutPeer(t *testing.T) {
	h := newHarness(t)
	client, clientPeer := clientConn(t, h.site.local, fake.NewSource())
	h.state.Connections.Set(client.Fd(), client)
	h.state.CgiProcesses.Set(100002, &core.CgiProcess{Pid: 100002, ClientFd: client.Fd(), PeerFd: -1})

	h.state.Execute(core.HandleReaped(h.state, []core.Reaped{{Pid: 100002}, {Pid: 100003}}))

	assert.Zero(t, h.state.CgiProcesses.Len())
	assert.Contains(t, h.respond(t, client.Fd(), clientPeer), "HTTP/1.1 502 Bad Gateway\r\n")
}

func TestChildReaperCollectsExitStatus(t *testing.T) {
	reaper, err := core.NewChildReaper(nil)
	require.NoError(t, err)
	defer reaper.Close()

	cmd := exec.Command("/bin/sh", "-c", "exit 7")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid

	var got []core.Reaped
	require.Eventually(t, func() bool {
		for _, r := range reaper.OnSignalEvent() {
			if r.Pid == pid {
				got = append(got, r)
			}
		}
		return len(got) > 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []core.Reaped{{Pid: pid, ExitCode: 7}}, got)
}
