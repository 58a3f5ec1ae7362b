// Package transport abstracts the byte-oriented duplex connection
// the HTTP client runs over.
package transport

import (
	"context"
	"net/netip"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrConnectionFailed = errors.New("connection failed")
	ErrConnClosed       = errors.New("connection is closed")
	ErrDeadlineExceeded = errors.New("deadline exceeded")
)

// Addr is a resolved network address: an IP plus a port.
type Addr struct {
	IP   netip.Addr
	Port uint16
}

func NewAddr(ip netip.Addr, port uint16) Addr {
	return Addr{IP: ip, Port: port}
}

// Network tags the address family ("tcp4" or "tcp6").
func (a Addr) Network() string {
	if a.IP.Is4() || a.IP.Is4In6() {
		return "tcp4"
	}
	return "tcp6"
}

func (a Addr) String() string {
	ip := a.IP.Unmap()
	host := ip.String()
	if ip.Is6() {
		host = "[" + host + "]"
	}
	return host + ":" + strconv.FormatUint(uint64(a.Port), 10)
}

type Conn interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)

	// Close releases the connection. Closing an already-closed
	// connection is a no-op.
	Close() error

	LocalAddr() Addr
	RemoteAddr() Addr

	// A zero time means no deadline.
	SetReadDeadline(t time.Time)
	SetWriteDeadline(t time.Time)
}

type ConnDialer interface {
	Dial(ctx context.Context, addr Addr) (Conn, error)
}
