// File: transport/address.go
// Author: momentics <momentics@gmail.com>

package transport

import (
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// WildcardHost is the configured host that matches every local address.
const WildcardHost = "0.0.0.0"

// Address is an IPv4 endpoint.
type Address struct {
	IP   string
	Port uint16
}

// NewAddress builds an address.
func NewAddress(ip string, port uint16) Address {
	return Address{IP: ip, Port: port}
}

func (a Address) String() string {
	return net.JoinHostPort(a.IP, strconv.Itoa(int(a.Port)))
}

// PortString returns the port in decimal.
func (a Address) PortString() string {
	return strconv.Itoa(int(a.Port))
}

// IsWildcard reports whether a is the any-address.
func (a Address) IsWildcard() bool { return a.IP == WildcardHost }

func (a Address) sockaddr() (*unix.SockaddrInet4, error) {
	ip := net.ParseIP(a.IP)
	if ip == nil {
		return nil, fmt.Errorf("invalid IPv4 address %q", a.IP)
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("not an IPv4 address %q", a.IP)
	}
	sa := &unix.SockaddrInet4{Port: int(a.Port)}
	copy(sa.Addr[:], ip4)
	return sa, nil
}

func addressFromSockaddr(sa unix.Sockaddr) Address {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return Address{IP: net.IP(v.Addr[:]).String(), Port: uint16(v.Port)}
	case *unix.SockaddrInet6:
		return Address{IP: net.IP(v.Addr[:]).String(), Port: uint16(v.Port)}
	default:
		return Address{IP: "127.0.0.1"}
	}
}
