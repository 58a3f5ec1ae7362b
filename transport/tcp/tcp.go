// Package tcp adapts the kernel TCP stack to [transport.Conn].
package tcp

import (
	"context"
	"io"
	"net"
	"net/netip"
	"os"
	"time"

	"httpfetch/transport"

	"github.com/pkg/errors"
)

type Dialer struct {
	// Timeout bounds the connection attempt in addition to the
	// dial context. Zero means no timeout.
	Timeout time.Duration
}

var _ transport.ConnDialer = (*Dialer)(nil)

func (d *Dialer) Dial(ctx context.Context, addr transport.Addr) (transport.Conn, error) {
	nd := net.Dialer{Timeout: d.Timeout}

	nc, err := nd.DialContext(ctx, addr.Network(), addr.String())
	if err != nil {
		return nil, errors.Wrapf(transport.ErrConnectionFailed, "dial %s: %v", addr, err)
	}

	return &conn{nc: nc}, nil
}

type conn struct {
	nc net.Conn
}

var _ transport.Conn = (*conn)(nil)

func (c *conn) Read(p []byte) (n int, err error) {
	n, err = c.nc.Read(p)
	return n, mapErr(err)
}

func (c *conn) Write(p []byte) (n int, err error) {
	n, err = c.nc.Write(p)
	return n, mapErr(err)
}

func (c *conn) Close() error {
	if err := c.nc.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (c *conn) LocalAddr() transport.Addr  { return convertAddr(c.nc.LocalAddr()) }
func (c *conn) RemoteAddr() transport.Addr { return convertAddr(c.nc.RemoteAddr()) }

func (c *conn) SetReadDeadline(t time.Time)  { _ = c.nc.SetReadDeadline(t) }
func (c *conn) SetWriteDeadline(t time.Time) { _ = c.nc.SetWriteDeadline(t) }

// mapErr normalizes net errors into the transport sentinels.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case err == io.EOF, errors.Is(err, net.ErrClosed):
		return transport.ErrConnClosed
	case errors.Is(err, os.ErrDeadlineExceeded):
		return transport.ErrDeadlineExceeded
	}
	return err
}

func convertAddr(na net.Addr) transport.Addr {
	tcpAddr, ok := na.(*net.TCPAddr)
	if !ok {
		return transport.Addr{}
	}

	ip, ok := netip.AddrFromSlice(tcpAddr.IP)
	if !ok {
		return transport.Addr{}
	}

	return transport.NewAddr(ip.Unmap(), uint16(tcpAddr.Port))
}
