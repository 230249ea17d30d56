package vserver_test

import (
	"testing"

	"github.com/momentics/hioload-httpd/config"
	"github.com/momentics/hioload-httpd/transport"
	"github.com/momentics/hioload-httpd/vserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func server(host string, port uint16, names ...string) config.ServerContext {
	return config.ServerContext{Host: host, Port: port, ServerNames: names, ClientMaxBodySize: int64(port)}
}

func TestSpecificOutranksWildcard(t *testing.T) {
	wild := server("0.0.0.0", 8080, "wild.example")
	spec := server("127.0.0.1", 8080, "specific.example")
	f := vserver.NewResolverFactory([]config.ServerContext{wild, spec})

	r := f.Create(transport.NewAddress("127.0.0.1", 8080))
	for _, host := range []string{"wild.example", "specific.example", "other", ""} {
		got, ok := r.Resolve(host)
		require.True(t, ok)
		assert.Equal(t, "127.0.0.1", got.Host, host)
	}

	r = f.Create(transport.NewAddress("10.1.2.3", 8080))
	got, ok := r.Resolve("specific.example")
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0", got.Host)
}

func TestResolveByServerNameStripsPort(t *testing.T) {
	a := server("0.0.0.0", 80, "a.example")
	b := server("0.0.0.0", 80, "b.example", "c.example")
	b2 := server("0.0.0.0", 80, "c.example")
	r := vserver.NewResolverFactory([]config.ServerContext{a, b, b2}).Create(transport.NewAddress("192.168.0.1", 80))

	got, ok := r.Resolve("c.example:80")
	require.True(t, ok)
	assert.Equal(t, []string{"b.example", "c.example"}, got.ServerNames)

	got, ok = r.Resolve("unknown")
	require.True(t, ok)
	assert.Equal(t, []string{"a.example"}, got.ServerNames)
}

func TestResolveFailsWithoutCandidates(t *testing.T) {
	r := vserver.NewResolverFactory([]config.ServerContext{server("127.0.0.1", 80)}).
		Create(transport.NewAddress("127.0.0.1", 81))
	_, ok := r.Resolve("any")
	assert.False(t, ok)
}

func TestListenAddresses(t *testing.T) {
	f := vserver.NewResolverFactory([]config.ServerContext{
		server("127.0.0.1", 80),
		server("0.0.0.0", 80),
		server("127.0.0.1", 81),
		server("127.0.0.1", 81),
		server("127.0.0.2", 81),
	})
	assert.Equal(t, []transport.Address{
		transport.NewAddress("0.0.0.0", 80),
		transport.NewAddress("127.0.0.1", 81),
		transport.NewAddress("127.0.0.2", 81),
	}, f.ListenAddresses())
}

func TestResolverNeverMixesSpecificAndWildcard(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		hosts := []string{"0.0.0.0", "127.0.0.1", "127.0.0.2"}
		n := rapid.IntRange(1, 6).Draw(t, "n")
		var servers []config.ServerContext
		for i := 0; i < n; i++ {
			servers = append(servers, server(
				rapid.SampledFrom(hosts).Draw(t, "host"),
				uint16(rapid.IntRange(80, 81).Draw(t, "port")),
			))
		}
		local := transport.NewAddress(rapid.SampledFrom(hosts[1:]).Draw(t, "local"), 80)
		candidates := vserver.NewResolverFactory(servers).Create(local).Candidates()

		hasSpecific := false
		for _, s := range servers {
			if s.Host == local.IP && s.Port == local.Port {
				hasSpecific = true
			}
		}
		for _, c := range candidates {
			assert.Equal(t, local.Port, c.Bind.Port)
			if hasSpecific {
				assert.Equal(t, local.IP, c.Bind.IP)
			} else {
				assert.True(t, c.Bind.IsWildcard())
			}
		}
	})
}
