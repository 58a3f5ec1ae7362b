// Package client is the fetch facade: it turns a URL into a live
// [Response] handle by resolving, connecting, writing the request
// and parsing the response header block.
package client

import (
	"context"
	"io"
	"log/slog"
	"net/netip"
	"time"

	"httpfetch/domain"
	"httpfetch/http"
	"httpfetch/transport"
	"httpfetch/uri"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

type Client struct {
	dialer   transport.ConnDialer
	lookuper domain.Lookuper

	logger *slog.Logger
	clock  clock.Clock

	opts Options
}

func New(
	d transport.ConnDialer,
	lookuper domain.Lookuper,
	logger *slog.Logger,
	clk clock.Clock,
	opts Options,
) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if clk == nil {
		clk = clock.New()
	}

	return &Client{
		dialer:   d,
		lookuper: lookuper,
		logger:   logger,
		clock:    clk,
		opts:     opts,
	}
}

// Fetch performs one request over one connection and returns a
// handle once the response header block is recognized. The body is
// not pulled off the wire until the handle is asked for it.
//
// Any failure before the handle exists closes the connection and
// surfaces here; failures after (e.g. a connection dropped mid-body)
// surface from the handle's body read instead.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	u, err := uri.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing URL")
	}

	addr, err := c.resolveAddr(ctx, u)
	if err != nil {
		return nil, err
	}

	conn, err := c.dialer.Dial(ctx, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to %s", addr)
	}
	c.logger.Debug("connection opened", "addr", addr.String())

	if err := c.writeRequest(conn, u); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "writing request")
	}

	if t := c.opts.Timeout.ResponseHeader; t > 0 {
		conn.SetReadDeadline(c.clock.Now().Add(t))
	}

	parser := http.NewResponseParser(&connClosedReader{r: conn}, c.opts.Receive.Decode)

	head, err := parser.ReadHeaders()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "reading response headers")
	}

	conn.SetReadDeadline(time.Time{})

	c.logger.Debug("response headers received",
		"status", head.StatusCode, "content-length", head.ContentLength)

	return newResponse(head, conn, parser, c), nil
}

func (c *Client) resolveAddr(ctx context.Context, u uri.URL) (transport.Addr, error) {
	// An IP literal needs no resolution.
	if ip, err := netip.ParseAddr(u.Host); err == nil {
		return transport.NewAddr(ip, u.Port), nil
	}

	addrs, err := c.lookuper.LookupIP(ctx, u.Host)
	if err != nil {
		return transport.Addr{}, errors.Wrapf(err, "resolving host %q", u.Host)
	}
	if len(addrs) == 0 {
		return transport.Addr{}, errors.Wrapf(domain.ErrResolutionFailed,
			"no addresses for host %q", u.Host)
	}

	// Let's simply use the first address.
	return transport.NewAddr(addrs[0], u.Port), nil
}

func (c *Client) writeRequest(conn transport.Conn, u uri.URL) error {
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-3.2
	host := u.Host
	if u.Port != uri.DefaultPort {
		host = u.HostPort()
	}

	request := http.Request{
		Method:  "GET",
		Target:  u.RequestTarget(),
		Version: http.Version11,
		Headers: []http.Field{
			{Name: []byte("host"), Value: []byte(host)},
		},
	}

	enc := http.NewRequestEncoder(conn, c.opts.Send.Encode)
	return enc.Encode(request)
}

// connClosedReader overwrites [transport.ErrConnClosed] as [io.EOF]
// so the parser sees a plain end of stream.
type connClosedReader struct{ r transport.Conn }

func (r *connClosedReader) Read(p []byte) (n int, err error) {
	n, err = r.r.Read(p)
	if errors.Is(err, transport.ErrConnClosed) {
		return n, io.EOF
	}
	return n, err
}
