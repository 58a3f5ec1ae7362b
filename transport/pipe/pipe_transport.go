package pipe

import (
	"context"
	"sync"

	"httpfetch/transport"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// Transport is an in-memory [transport.ConnDialer]. Dialing a served
// address creates a fresh conn pair and hands the far end to the
// registered handler on its own goroutine.
type Transport struct {
	servers map[transport.Addr]func(transport.Conn)
	clock   clock.Clock

	wg sync.WaitGroup
	mu sync.Mutex
}

var _ transport.ConnDialer = (*Transport)(nil)

func NewTransport(clk clock.Clock) *Transport {
	return &Transport{
		servers: make(map[transport.Addr]func(transport.Conn)),
		clock:   clk,
	}
}

// Serve registers handler as the accepting side of addr.
func (t *Transport) Serve(addr transport.Addr, handler func(conn transport.Conn)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.servers[addr] = handler
}

func (t *Transport) Dial(ctx context.Context, addr transport.Addr) (transport.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	handler, ok := t.servers[addr]
	t.mu.Unlock()

	if !ok {
		return nil, errors.Wrapf(transport.ErrConnectionFailed, "nothing serves %s", addr)
	}

	local, remote := Pair(transport.Addr{}, addr, t.clock)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		handler(remote)
	}()

	return local, nil
}

// Wait blocks until every handler goroutine has returned.
func (t *Transport) Wait() { t.wg.Wait() }
