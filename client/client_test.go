package client

import (
	"context"
	"log/slog"
	"net/netip"
	"sync"
	"testing"
	"time"

	"httpfetch/domain"
	"httpfetch/http"
	iolib "httpfetch/lib/io"
	"httpfetch/transport"
	"httpfetch/transport/pipe"
	"httpfetch/uri"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

type countingDialer struct {
	inner transport.ConnDialer

	mu    sync.Mutex
	dials int
}

func (d *countingDialer) Dial(ctx context.Context, addr transport.Addr) (transport.Conn, error) {
	d.mu.Lock()
	d.dials++
	d.mu.Unlock()
	return d.inner.Dial(ctx, addr)
}

func (d *countingDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type ClientTestSuite struct {
	suite.Suite

	transport *pipe.Transport
	dialer    *countingDialer
	lookuper  domain.Lookuper
	clock     clock.Clock

	addr   transport.Addr
	client *Client
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (s *ClientTestSuite) SetupTest() {
	s.clock = clock.New()
	s.transport = pipe.NewTransport(s.clock)
	s.dialer = &countingDialer{inner: s.transport}

	loopback := netip.MustParseAddr("127.0.0.1")
	s.lookuper = domain.NewMapLookuper(map[string][]netip.Addr{
		"localhost": {loopback},
	})
	s.addr = transport.NewAddr(loopback, uri.DefaultPort)

	logger := slog.New(slog.DiscardHandler)
	s.client = New(s.dialer, s.lookuper, logger, s.clock, Options{})
}

func (s *ClientTestSuite) TearDownTest() {
	s.transport.Wait()
	goleak.VerifyNone(s.T())
}

// serve registers a handler at addr that reads one request, replies
// with the given chunks as separate writes, then drains until the
// peer closes. The received request bytes arrive on the channel.
func (s *ClientTestSuite) serve(addr transport.Addr, chunks ...string) <-chan []byte {
	reqCh := make(chan []byte, 1)

	s.transport.Serve(addr, func(conn transport.Conn) {
		defer conn.Close()

		r := iolib.NewUntilReader(conn)
		request, err := r.ReadUntil([]byte("\r\n\r\n"))
		if err != nil {
			return
		}
		reqCh <- request

		for _, chunk := range chunks {
			if _, err := conn.Write([]byte(chunk)); err != nil {
				return
			}
		}

		// One response per connection: wait for the peer to close.
		buf := make([]byte, 64)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	})

	return reqCh
}

func (s *ClientTestSuite) TestFetch() {
	reqCh := s.serve(s.addr,
		"HTTP/1.1 200",
		" OK\r\ncontent-length: 13\r\n\r\n",
		"Hello, world!",
	)

	res, err := s.client.Fetch(context.Background(), "http://localhost/")
	s.Require().NoError(err)

	s.Equal(uint(200), res.Status)
	s.Equal("OK", res.Reason)
	s.Equal(http.Version11, res.Version)
	s.Equal(uint(13), res.ContentLength)

	v, ok := res.Headers.Get("content-length")
	s.Require().True(ok)
	s.Equal("13", v)

	text, err := res.Text()
	s.Require().NoError(err)
	s.Equal("Hello, world!", text)

	s.Equal("GET / HTTP/1.1\r\nhost: localhost\r\n\r\n", string(<-reqCh))

	// A second read returns the cached body; no new connection,
	// no new request.
	text, err = res.Text()
	s.Require().NoError(err)
	s.Equal("Hello, world!", text)
	s.Equal(1, s.dialer.count())
}

func (s *ClientTestSuite) TestFetchRequestTarget() {
	addr := transport.NewAddr(netip.MustParseAddr("127.0.0.1"), 8080)
	reqCh := s.serve(addr, "HTTP/1.1 200 OK\r\ncontent-length: 0\r\n\r\n")

	res, err := s.client.Fetch(context.Background(), "http://localhost:8080/search?q=hi#frag")
	s.Require().NoError(err)
	defer res.Close()

	// The fragment never hits the wire; a non-default port shows up
	// in the host header.
	s.Equal("GET /search?q=hi HTTP/1.1\r\nhost: localhost:8080\r\n\r\n", string(<-reqCh))
}

func (s *ClientTestSuite) TestFetchZeroContentLength() {
	s.serve(s.addr, "HTTP/1.1 204 No Content\r\ncontent-length: 0\r\n\r\n")

	res, err := s.client.Fetch(context.Background(), "http://localhost/")
	s.Require().NoError(err)

	s.Equal(uint(204), res.Status)

	text, err := res.Text()
	s.Require().NoError(err)
	s.Equal("", text)
}

func (s *ClientTestSuite) TestFetchIPLiteralHost() {
	s.serve(s.addr, "HTTP/1.1 200 OK\r\ncontent-length: 2\r\n\r\nok")

	// No lookuper entry exists for the literal; it must not be
	// consulted at all.
	res, err := s.client.Fetch(context.Background(), "http://127.0.0.1/")
	s.Require().NoError(err)

	text, err := res.Text()
	s.Require().NoError(err)
	s.Equal("ok", text)
}

func (s *ClientTestSuite) TestFetchUnsupportedScheme() {
	_, err := s.client.Fetch(context.Background(), "ftp://example.com")
	s.Require().ErrorIs(err, uri.ErrUnsupportedScheme)

	// No network activity happened.
	s.Equal(0, s.dialer.count())
}

func (s *ClientTestSuite) TestFetchMalformedURL() {
	_, err := s.client.Fetch(context.Background(), "not a url")
	s.Require().ErrorIs(err, uri.ErrMalformedURL)
	s.Equal(0, s.dialer.count())
}

func (s *ClientTestSuite) TestFetchResolutionFailed() {
	_, err := s.client.Fetch(context.Background(), "http://nowhere.invalid/")
	s.Require().ErrorIs(err, domain.ErrResolutionFailed)
	s.Equal(0, s.dialer.count())
}

// emptyLookuper answers every lookup with zero addresses and no error.
type emptyLookuper struct{}

func (emptyLookuper) LookupIP(context.Context, string) ([]netip.Addr, error) {
	return []netip.Addr{}, nil
}

func (s *ClientTestSuite) TestFetchNoAddresses() {
	client := New(s.dialer, emptyLookuper{}, nil, s.clock, Options{})

	_, err := client.Fetch(context.Background(), "http://empty.example/")
	s.Require().ErrorIs(err, domain.ErrResolutionFailed)
	s.Equal(0, s.dialer.count())
}

func (s *ClientTestSuite) TestFetchConnectionFailed() {
	// localhost resolves, but nothing serves the address.
	_, err := s.client.Fetch(context.Background(), "http://localhost/")
	s.Require().ErrorIs(err, transport.ErrConnectionFailed)
}

func (s *ClientTestSuite) TestFetchNoContentLength() {
	s.serve(s.addr, "HTTP/1.1 200 OK\r\nserver: testd\r\n\r\n")

	_, err := s.client.Fetch(context.Background(), "http://localhost/")
	s.Require().ErrorIs(err, http.ErrNoContentLength)
}

func (s *ClientTestSuite) TestBodyPrematureClose() {
	s.transport.Serve(s.addr, func(conn transport.Conn) {
		defer conn.Close()

		r := iolib.NewUntilReader(conn)
		if _, err := r.ReadUntil([]byte("\r\n\r\n")); err != nil {
			return
		}

		// Declare 10 bytes but deliver 3, then close.
		_, _ = conn.Write([]byte("HTTP/1.1 200 OK\r\ncontent-length: 10\r\n\r\nhal"))
	})

	res, err := s.client.Fetch(context.Background(), "http://localhost/")
	s.Require().NoError(err)

	_, err = res.Text()
	s.Require().ErrorIs(err, http.ErrConnClosedPrematurely)

	// The failure outcome is cached like a success.
	_, err = res.Text()
	s.Require().ErrorIs(err, http.ErrConnClosedPrematurely)
}

func (s *ClientTestSuite) TestCloseBeforeBody() {
	s.serve(s.addr, "HTTP/1.1 200 OK\r\ncontent-length: 5\r\n\r\nhello")

	res, err := s.client.Fetch(context.Background(), "http://localhost/")
	s.Require().NoError(err)

	s.Require().NoError(res.Close())
	s.Require().NoError(res.Close()) // idempotent

	_, err = res.Text()
	s.Require().ErrorIs(err, ErrBodyConsumed)
}

func (s *ClientTestSuite) TestResponseHeaderTimeout() {
	s.transport.Serve(s.addr, func(conn transport.Conn) {
		defer conn.Close()

		r := iolib.NewUntilReader(conn)
		if _, err := r.ReadUntil([]byte("\r\n\r\n")); err != nil {
			return
		}

		// Never respond; wait for the client to give up.
		buf := make([]byte, 64)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	})

	logger := slog.New(slog.DiscardHandler)
	client := New(s.dialer, s.lookuper, logger, s.clock, Options{
		Timeout: TimeoutOptions{ResponseHeader: 30 * time.Millisecond},
	})

	_, err := client.Fetch(context.Background(), "http://localhost/")
	s.Require().ErrorIs(err, transport.ErrDeadlineExceeded)
}
