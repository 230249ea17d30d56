//go:build linux

package transport_test

import (
	"net"
	"testing"
	"time"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestListenerAcceptsNonBlocking(t *testing.T) {
	ln, err := transport.Listen(transport.NewAddress("127.0.0.1", 0))
	require.NoError(t, err)
	defer ln.Close()
	require.NotZero(t, ln.Address().Port)

	_, err = ln.Accept()
	assert.True(t, api.IsWouldBlock(err))

	client, err := net.Dial("tcp", ln.Address().String())
	require.NoError(t, err)
	defer client.Close()

	var conn *transport.Connection
	require.Eventually(t, func() bool {
		conn, err = ln.Accept()
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)
	defer conn.Close()

	assert.Equal(t, "127.0.0.1", conn.LocalAddress().IP)
	assert.Equal(t, ln.Address().Port, conn.LocalAddress().Port)
	assert.Equal(t, client.LocalAddr().(*net.TCPAddr).Port, int(conn.ForeignAddress().Port))

	_, err = client.Write([]byte("ping"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		n, err := conn.ReadBuffer().Load()
		return err == nil && n > 0
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []byte("ping"), conn.ReadBuffer().Bytes())
}

func TestSocketPairHalfClose(t *testing.T) {
	parent, child, err := transport.SocketPair()
	require.NoError(t, err)
	defer child.Close()

	conn := transport.NewConnection(parent, transport.Address{}, transport.Address{})
	defer conn.Close()

	_, err = conn.Write([]byte("body"))
	require.NoError(t, err)
	require.NoError(t, conn.CloseWrite())

	buf := make([]byte, 16)
	n, err := unix.Read(child.Get(), buf)
	require.NoError(t, err)
	assert.Equal(t, "body", string(buf[:n]))
	n, err = unix.Read(child.Get(), buf)
	require.NoError(t, err)
	assert.Zero(t, n)
}
