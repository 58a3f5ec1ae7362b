// Package pipe provides a synchronous in-memory [transport.Conn]
// pair, mainly for exercising the client without sockets.
package pipe

import (
	"sync"
	"time"

	"httpfetch/transport"

	"github.com/benbjohnson/clock"
)

type conn struct {
	stream chan []byte // stream that this side reads from.
	nc     chan int    // counterpart's consumed-byte count arrives here.

	writeMu sync.Mutex

	closed chan struct{}
	once   sync.Once

	rdeadline *chanDeadline
	wdeadline *chanDeadline

	counterpart *conn

	local, remote transport.Addr
}

var _ transport.Conn = (*conn)(nil)

// Pair creates two ends of a synchronous, unbuffered connection.
func Pair(a1, a2 transport.Addr, clk clock.Clock) (c1, c2 *conn) {
	c1 = &conn{
		stream:    make(chan []byte),
		nc:        make(chan int),
		closed:    make(chan struct{}),
		rdeadline: newChanDeadline(clk),
		wdeadline: newChanDeadline(clk),
		local:     a1,
		remote:    a2,
	}
	c2 = &conn{
		stream:    make(chan []byte),
		nc:        make(chan int),
		closed:    make(chan struct{}),
		rdeadline: newChanDeadline(clk),
		wdeadline: newChanDeadline(clk),
		local:     a2,
		remote:    a1,
	}
	c1.counterpart, c2.counterpart = c2, c1
	return
}

func (p *conn) LocalAddr() transport.Addr  { return p.local }
func (p *conn) RemoteAddr() transport.Addr { return p.remote }

func (p *conn) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *conn) Read(b []byte) (n int, err error) {
	if err := p.checkOK(p.rdeadline); err != nil {
		return 0, err
	}

	select {
	case received := <-p.stream:
		n := copy(b, received)
		p.counterpart.nc <- n
		return n, nil
	case <-p.closed:
		return 0, transport.ErrConnClosed
	case <-p.counterpart.closed:
		return 0, transport.ErrConnClosed
	case <-p.rdeadline.wait():
		return 0, transport.ErrDeadlineExceeded
	}
}

func (p *conn) Write(b []byte) (n int, err error) {
	if err := p.checkOK(p.wdeadline); err != nil {
		return 0, err
	}

	if len(b) == 0 {
		return 0, nil
	}

	// Serialize writes to prevent interleaving.
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	nn := 0
	for len(b) > 0 {
		select {
		case p.counterpart.stream <- b:
			n := <-p.nc
			b = b[n:]
			nn += n
		case <-p.closed:
			return nn, transport.ErrConnClosed
		case <-p.counterpart.closed:
			return nn, transport.ErrConnClosed
		case <-p.wdeadline.wait():
			return nn, transport.ErrDeadlineExceeded
		}
	}

	return nn, nil
}

func (p *conn) checkOK(d *chanDeadline) error {
	switch {
	case isClosed(p.closed):
		return transport.ErrConnClosed
	case isClosed(p.counterpart.closed):
		return transport.ErrConnClosed
	case isClosed(d.wait()):
		return transport.ErrDeadlineExceeded
	}
	return nil
}

func (p *conn) SetReadDeadline(t time.Time)  { p.rdeadline.set(t) }
func (p *conn) SetWriteDeadline(t time.Time) { p.wdeadline.set(t) }

// chanDeadline exposes a deadline as a closable channel.
type chanDeadline struct {
	clock clock.Clock

	t *clock.Timer
	m sync.Mutex

	fired chan struct{}
}

func newChanDeadline(clk clock.Clock) *chanDeadline {
	return &chanDeadline{
		clock: clk,
		fired: make(chan struct{}),
	}
}

func (d *chanDeadline) set(t time.Time) {
	d.m.Lock()
	defer d.m.Unlock()

	if d.t != nil {
		d.t.Stop()
	}
	d.t = nil

	if isClosed(d.fired) {
		d.fired = make(chan struct{})
	}

	if t.IsZero() {
		// zero value means no deadline.
		return
	}

	fired := d.fired
	d.t = d.clock.AfterFunc(d.clock.Until(t), func() {
		close(fired)
	})
}

func (d *chanDeadline) wait() <-chan struct{} {
	d.m.Lock()
	defer d.m.Unlock()
	return d.fired
}

func isClosed(c <-chan struct{}) bool {
	select {
	case <-c:
		return true
	default:
		return false
	}
}
