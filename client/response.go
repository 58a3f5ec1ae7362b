package client

import (
	"log/slog"
	"sync"
	"time"

	"httpfetch/http"
	"httpfetch/transport"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// ErrBodyConsumed reports a body read on a handle that was closed
// before the body was ever read.
var ErrBodyConsumed = errors.New("body already consumed")

// Response is the handle returned by [Client.Fetch] once the header
// block is recognized. It owns the still-open connection; the body
// stays on the wire until requested and is read at most once.
type Response struct {
	Status        uint
	Reason        string
	Version       http.Version
	Headers       http.Headers
	ContentLength uint

	conn   transport.Conn
	parser *http.ResponseParser

	logger      *slog.Logger
	clock       clock.Clock
	bodyTimeout time.Duration

	mu       sync.Mutex
	consumed bool
	body     []byte
	bodyErr  error

	closeOnce sync.Once
}

func newResponse(
	head *http.Response,
	conn transport.Conn,
	parser *http.ResponseParser,
	c *Client,
) *Response {
	return &Response{
		Status:        head.StatusCode,
		Reason:        head.ReasonPhrase,
		Version:       head.Version,
		Headers:       head.Headers,
		ContentLength: head.ContentLength,

		conn:   conn,
		parser: parser,

		logger:      c.logger,
		clock:       c.clock,
		bodyTimeout: c.opts.Timeout.Body,
	}
}

// Bytes reads the full body and closes the connection. The first
// call performs the network read; every later call returns the same
// cached outcome, value or error, without touching the network.
func (r *Response) Bytes() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.consumed {
		return r.body, r.bodyErr
	}
	r.consumed = true

	if t := r.bodyTimeout; t > 0 {
		r.conn.SetReadDeadline(r.clock.Now().Add(t))
	}

	body, err := r.parser.ReadBody()

	// The server keeps the connection open after the body;
	// one response per connection means we are done with it.
	r.closeConn()

	if err != nil {
		r.bodyErr = errors.Wrap(err, "reading response body")
		return nil, r.bodyErr
	}

	r.body = body
	return body, nil
}

// Text is [Response.Bytes] decoded as a string.
func (r *Response) Text() (string, error) {
	b, err := r.Bytes()
	return string(b), err
}

// Close releases the connection. Closing before the body was read
// abandons it: later Bytes/Text calls fail with [ErrBodyConsumed].
// Close is idempotent and safe after errors.
func (r *Response) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.consumed {
		r.consumed = true
		r.bodyErr = ErrBodyConsumed
	}
	r.closeConn()
	return nil
}

func (r *Response) closeConn() {
	r.closeOnce.Do(func() {
		_ = r.conn.Close()
		r.logger.Debug("connection closed", "addr", r.conn.RemoteAddr().String())
	})
}
